package capture

import (
	"context"
	"os"
	"testing"
)

// recordingController is a no-op TracerController that records which
// lifecycle calls Session made, so tests can assert on sequencing without
// a real injected agent.
type recordingController struct {
	installed bool
	fired     bool
	resumed   bool
	detached  bool
}

func (c *recordingController) SpawnSuspended(ctx context.Context, binary string, args []string) (int, error) {
	return 0, nil
}
func (c *recordingController) Attach(ctx context.Context, pid int) error { return nil }
func (c *recordingController) SetDetailEnabled(ctx context.Context, enabled bool) error {
	return nil
}
func (c *recordingController) ArmTrigger(ctx context.Context, preRollMs, postRollMs int) error {
	return nil
}
func (c *recordingController) DisarmTrigger(ctx context.Context) error { return nil }

func (c *recordingController) InstallHooks(ctx context.Context) error {
	c.installed = true
	return nil
}
func (c *recordingController) FireTrigger(ctx context.Context) error {
	c.fired = true
	return nil
}
func (c *recordingController) Resume(ctx context.Context) error {
	c.resumed = true
	return nil
}
func (c *recordingController) Detach(ctx context.Context) error {
	c.detached = true
	return nil
}

func TestStartAttachesAndReachesRunningState(t *testing.T) {
	ctrl := &recordingController{}
	dir := t.TempDir()

	sess, err := Start(context.Background(), ctrl, nil, StartOptions{
		PID:      os.Getpid(),
		Output:   dir,
		NoScreen: true,
		NoVoice:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if sess.State() != StateRunning {
		t.Fatalf("expected StateRunning, got %v", sess.State())
	}
	if !ctrl.installed {
		t.Error("expected InstallHooks to have been called")
	}
	if !ctrl.resumed {
		t.Error("expected Resume to have been called")
	}
	// NoVoice was set, so the flight recorder trigger must not have fired.
	if ctrl.fired {
		t.Error("did not expect FireTrigger with NoVoice set")
	}
	if sess.TraceRoot() == "" {
		t.Error("expected a non-empty trace root")
	}
}

func TestStartArmsVoiceWhenEnabled(t *testing.T) {
	ctrl := &recordingController{}
	sess, err := Start(context.Background(), ctrl, nil, StartOptions{
		PID:      os.Getpid(),
		Output:   t.TempDir(),
		NoScreen: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ctrl.fired {
		t.Error("expected FireTrigger to have been called when NoVoice is not set")
	}
	if sess.State() != StateRunning {
		t.Fatalf("expected StateRunning, got %v", sess.State())
	}
}

func TestStopTearsDownAndDetaches(t *testing.T) {
	ctrl := &recordingController{}
	sess, err := Start(context.Background(), ctrl, nil, StartOptions{
		PID:      os.Getpid(),
		Output:   t.TempDir(),
		NoScreen: true,
		NoVoice:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := sess.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !ctrl.detached {
		t.Error("expected Detach to have been called")
	}
	if sess.State() != StateComplete {
		t.Fatalf("expected StateComplete after Stop, got %v", sess.State())
	}
}

func TestStopVoiceFailsWhenNotActive(t *testing.T) {
	ctrl := &recordingController{}
	sess, err := Start(context.Background(), ctrl, nil, StartOptions{
		PID:      os.Getpid(),
		Output:   t.TempDir(),
		NoScreen: true,
		NoVoice:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sess.StopVoice(context.Background()); err == nil {
		t.Fatal("expected StopVoice to fail when no segment is active")
	}
}
