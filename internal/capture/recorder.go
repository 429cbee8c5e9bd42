package capture

import (
	"os/exec"
	"syscall"
	"time"

	"github.com/adatrace/ada-trace/pkg/log"
)

// stopGrace is how long a companion recorder gets to exit cleanly after
// SIGTERM before it is SIGKILLed.
const stopGrace = 5 * time.Second

// RecorderChild wraps a spawned screen/voice recorder subprocess.
type RecorderChild struct {
	Name string
	cmd  *exec.Cmd
	done chan error
}

// StartRecorder launches cmd and begins watching for its exit in the
// background.
func StartRecorder(name string, cmd *exec.Cmd) (*RecorderChild, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	rc := &RecorderChild{Name: name, cmd: cmd, done: make(chan error, 1)}
	go func() {
		rc.done <- cmd.Wait()
	}()
	return rc, nil
}

// Stop sends SIGTERM, waits up to stopGrace for a clean exit, then
// SIGKILLs. A recorder that is already gone is not an error, only a
// warning.
func (rc *RecorderChild) Stop() error {
	if rc == nil || rc.cmd.Process == nil {
		return nil
	}
	if err := rc.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Warnf("capture: recorder %s: SIGTERM failed (%v), continuing without media", rc.Name, err)
		return nil
	}

	select {
	case err := <-rc.done:
		return err
	case <-time.After(stopGrace):
		log.Warnf("capture: recorder %s: did not exit within %s, sending SIGKILL", rc.Name, stopGrace)
		_ = rc.cmd.Process.Kill()
		<-rc.done
		return nil
	}
}
