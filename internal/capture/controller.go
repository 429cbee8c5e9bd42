// Package capture drives a capture session's lifecycle: spawn/attach the
// target process, install the native agent's hooks, arm/fire the flight
// recorder trigger, and coordinate companion screen/voice recorders into a
// single on-disk bundle. The native agent itself is an external
// collaborator, specified here only by the TracerController interface it
// must satisfy.
package capture

import "context"

// State is one node of the capture session's lifecycle state machine.
type State int

const (
	StateIdle State = iota
	StateSpawning
	StateHooked
	StateRunning
	StateRecording
	StateStopping
	StateFinalizing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpawning:
		return "spawning"
	case StateHooked:
		return "hooked"
	case StateRunning:
		return "running"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// TracerController is the interface the injected native agent's control
// surface must satisfy. Its implementation (spawning suspended, injecting
// a dylib, setting breakpoints on function entry/exit) is out of scope —
// this repository only drives it through this interface and persists what
// it reports.
type TracerController interface {
	// SpawnSuspended starts binary with args, suspended before its first
	// instruction, returning the target's PID.
	SpawnSuspended(ctx context.Context, binary string, args []string) (pid int, err error)
	// Attach attaches to an already-running process.
	Attach(ctx context.Context, pid int) error
	// InstallHooks injects the agent and installs entry/exit probes.
	InstallHooks(ctx context.Context) error
	// SetDetailEnabled toggles full-detail capture versus index-only.
	SetDetailEnabled(ctx context.Context, enabled bool) error
	// ArmTrigger configures the flight recorder's pre/post-roll window.
	ArmTrigger(ctx context.Context, preRollMs, postRollMs int) error
	// FireTrigger switches the agent from index-only to full detail.
	FireTrigger(ctx context.Context) error
	// DisarmTrigger reverts ArmTrigger's configuration.
	DisarmTrigger(ctx context.Context) error
	// Resume resumes a suspended target so it begins executing.
	Resume(ctx context.Context) error
	// Detach stops hooking and releases the target.
	Detach(ctx context.Context) error
}
