// Package runtimeenv provides the small amount of process-level setup a
// long-running daemon needs outside its core logic: dropping root once a
// privileged port or device has been opened, and telling systemd when the
// process is ready or shutting down.
package runtimeenv

import (
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"strconv"
	"syscall"

	"github.com/adatrace/ada-trace/pkg/log"
)

// DropPrivileges changes the process's user and group to those named,
// leaving either unchanged if the corresponding argument is empty. The Go
// runtime applies the underlying setuid/setgid syscall to every OS thread,
// not just the calling one, so this is safe to call from any goroutine
// early in startup — typically right after a capture daemon has opened its
// control socket or a query-engine has bound its listening port.
func DropPrivileges(username string, group string) error {
	if group != "" {
		g, err := user.LookupGroup(group)
		if err != nil {
			log.Warn("runtimeenv: error looking up group")
			return err
		}

		gid, _ := strconv.Atoi(g.Gid)
		if err := syscall.Setgid(gid); err != nil {
			log.Warn("runtimeenv: error setting gid")
			return err
		}
	}

	if username != "" {
		u, err := user.Lookup(username)
		if err != nil {
			log.Warn("runtimeenv: error looking up user")
			return err
		}

		uid, _ := strconv.Atoi(u.Uid)
		if err := syscall.Setuid(uid); err != nil {
			log.Warn("runtimeenv: error setting uid")
			return err
		}
	}

	return nil
}

// SystemdNotify informs systemd of a readiness or status change via
// sd_notify, a no-op when the process was not started under systemd
// (NOTIFY_SOCKET unset).
func SystemdNotify(ready bool, status string) {
	if os.Getenv("NOTIFY_SOCKET") == "" {
		return
	}

	args := []string{fmt.Sprintf("--pid=%d", os.Getpid())}
	if ready {
		args = append(args, "--ready")
	}
	if status != "" {
		args = append(args, fmt.Sprintf("--status=%s", status))
	}

	cmd := exec.Command("systemd-notify", args...)
	cmd.Run() // best-effort: nothing useful to do if systemd-notify is missing
}
