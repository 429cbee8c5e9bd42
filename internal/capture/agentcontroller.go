package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/adatrace/ada-trace/pkg/log"
)

// AgentController is the production TracerController: it spawns the
// target with the injected agent's dylib preloaded via the
// platform-specific env var, and drives the agent's hook/trigger surface
// over a small JSON command protocol on a per-pid Unix domain socket the
// agent opens once loaded. What happens inside that dylib — installing
// entry/exit probes, writing to the ring buffer — is the native agent's
// job and stays out of scope here; this controller only spawns the
// target, signals it, and relays commands over the socket.
type AgentController struct {
	dylibPath string

	cmd  *exec.Cmd
	pid  int
	conn net.Conn
}

// NewAgentController returns a controller that injects dylibPath into
// spawned/attached targets. If dylibPath is empty, the search paths in
// ADA_AGENT_RPATH_SEARCH_PATHS are tried at spawn time.
func NewAgentController(dylibPath string) *AgentController {
	return &AgentController{dylibPath: dylibPath}
}

func (c *AgentController) resolveDylib() (string, error) {
	if c.dylibPath != "" {
		return c.dylibPath, nil
	}
	searchPaths := filepath.SplitList(os.Getenv("ADA_AGENT_RPATH_SEARCH_PATHS"))
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, agentLibraryName())
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("capture: no agent library found (set -agent-lib or ADA_AGENT_RPATH_SEARCH_PATHS)")
}

func agentLibraryName() string {
	if runtime.GOOS == "darwin" {
		return "libada_agent.dylib"
	}
	return "libada_agent.so"
}

func injectionEnv(dylib string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"DYLD_INSERT_LIBRARIES=" + dylib,
			"DYLD_FORCE_FLAT_NAMESPACE=1",
		}
	default:
		return []string{"LD_PRELOAD=" + dylib}
	}
}

func (c *AgentController) socketPath() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("ada-agent-%d.sock", c.pid))
}

// SpawnSuspended starts binary under the injected agent and immediately
// stops it with SIGSTOP, the portable approximation of "suspended before
// first instruction" available without a platform-specific ptrace call.
func (c *AgentController) SpawnSuspended(ctx context.Context, binary string, args []string) (int, error) {
	dylib, err := c.resolveDylib()
	if err != nil {
		return 0, err
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = append(os.Environ(), injectionEnv(dylib)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("capture: spawning %s: %w", binary, err)
	}
	c.cmd = cmd
	c.pid = cmd.Process.Pid

	if err := cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return 0, fmt.Errorf("capture: suspending pid %d: %w", c.pid, err)
	}
	return c.pid, nil
}

// Attach records pid as the target of an already-running process. The
// agent is expected to already be loaded (e.g. injected by an external
// supervisor); this controller only starts talking to its control socket.
func (c *AgentController) Attach(ctx context.Context, pid int) error {
	c.pid = pid
	return nil
}

func (c *AgentController) dial() (net.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	var lastErr error
	for i := 0; i < 50; i++ {
		conn, err := net.Dial("unix", c.socketPath())
		if err == nil {
			c.conn = conn
			return conn, nil
		}
		lastErr = err
		time.Sleep(20 * time.Millisecond)
	}
	return nil, fmt.Errorf("capture: connecting to agent socket for pid %d: %w", c.pid, lastErr)
}

type agentCommand struct {
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params,omitempty"`
}

type agentResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *AgentController) send(cmd string, params interface{}) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}

	var raw json.RawMessage
	if params != nil {
		raw, err = json.Marshal(params)
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(agentCommand{Cmd: cmd, Params: raw}); err != nil {
		return fmt.Errorf("capture: sending %s to agent: %w", cmd, err)
	}

	var resp agentResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("capture: reading %s response from agent: %w", cmd, err)
	}
	if !resp.OK {
		return fmt.Errorf("capture: agent rejected %s: %s", cmd, resp.Error)
	}
	return nil
}

// InstallHooks tells the agent to install its entry/exit probes.
func (c *AgentController) InstallHooks(ctx context.Context) error {
	return c.send("install_hooks", nil)
}

// SetDetailEnabled toggles full-detail capture versus index-only.
func (c *AgentController) SetDetailEnabled(ctx context.Context, enabled bool) error {
	return c.send("set_detail_enabled", map[string]bool{"enabled": enabled})
}

// ArmTrigger configures the flight recorder's pre/post-roll window.
func (c *AgentController) ArmTrigger(ctx context.Context, preRollMs, postRollMs int) error {
	return c.send("arm_trigger", map[string]int{"pre_roll_ms": preRollMs, "post_roll_ms": postRollMs})
}

// FireTrigger switches the agent from index-only to full detail.
func (c *AgentController) FireTrigger(ctx context.Context) error {
	return c.send("fire_trigger", nil)
}

// DisarmTrigger reverts ArmTrigger's configuration.
func (c *AgentController) DisarmTrigger(ctx context.Context) error {
	return c.send("disarm_trigger", nil)
}

// Resume resumes a suspended target with SIGCONT.
func (c *AgentController) Resume(ctx context.Context) error {
	if c.cmd == nil || c.cmd.Process == nil {
		return fmt.Errorf("capture: resume called on pid %d with no local process handle", c.pid)
	}
	return c.cmd.Process.Signal(syscall.SIGCONT)
}

// Detach tells the agent to stop hooking and closes the control socket.
func (c *AgentController) Detach(ctx context.Context) error {
	err := c.send("detach", nil)
	if c.conn != nil {
		if closeErr := c.conn.Close(); closeErr != nil {
			log.Warnf("capture: closing agent socket for pid %d: %v", c.pid, closeErr)
		}
		c.conn = nil
	}
	return err
}
