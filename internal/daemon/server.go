package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/adatrace/ada-trace/internal/capture"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
)

// ControllerFactory constructs a fresh TracerController for a new capture
// session; production wiring supplies the real agent-backed
// implementation, tests supply a fake.
type ControllerFactory func() capture.TracerController

// Server reads one Command per input line and writes one Response per
// output line, serializing access to the single active capture session.
// The controller stays single-threaded: parallel access would race
// hook-install against resume.
type Server struct {
	newController ControllerFactory
	store         *state.Store
	session       *capture.Session
}

// NewServer builds a daemon server backed by store for sidecar
// persistence and newController for spawning tracer controllers.
func NewServer(newController ControllerFactory, store *state.Store) *Server {
	return &Server{newController: newController, store: store}
}

// Run processes commands from r and writes responses to w until r is
// exhausted. On exit, any still-active session is stopped.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	defer func() {
		if s.session != nil {
			_ = s.session.Stop(ctx)
			s.session = nil
		}
	}()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var cmd Command
		resp := ok(nil)
		if err := json.Unmarshal([]byte(line), &cmd); err != nil {
			resp = failMsg(fmt.Sprintf("invalid command: %v", err))
		} else {
			resp = s.dispatch(ctx, cmd)
		}

		out, err := MarshalResponse(resp)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Response {
	switch cmd.Cmd {
	case "start_session":
		return s.startSession(ctx, cmd)
	case "stop_session":
		return s.stopSession(ctx)
	case "start_voice":
		return s.startVoice(ctx, cmd)
	case "stop_voice":
		return s.stopVoice(ctx)
	case "status":
		return s.status()
	default:
		return failMsg(fmt.Sprintf("invalid command: %s", cmd.Cmd))
	}
}

func (s *Server) startSession(ctx context.Context, cmd Command) Response {
	if s.session != nil {
		return failMsg("session already active")
	}
	if s.store != nil {
		if err := s.store.GCOrphans(); err != nil {
			log.Warnf("daemon: sidecar GC failed: %v", err)
		}
	}

	opts := capture.StartOptions{
		Binary: cmd.Binary,
		Args:   cmd.Args,
		Output: cmd.Output,
		PID:    cmd.PID,
	}
	sess, err := capture.Start(ctx, s.newController(), s.store, opts)
	if err != nil {
		return fail(err)
	}
	s.session = sess
	return ok(SessionInfo{
		SessionRoot:   sess.SessionRoot(),
		TraceRoot:     sess.TraceRoot(),
		TraceSession:  sess.TraceSession(),
		IsVoiceActive: false,
	})
}

func (s *Server) stopSession(ctx context.Context) Response {
	if s.session == nil {
		return failMsg("no active session")
	}
	sess := s.session
	s.session = nil
	if err := sess.Stop(ctx); err != nil {
		return fail(err)
	}
	return ok(StatusInfo{IsSessionActive: false, IsVoiceActive: false, SessionRoot: sess.SessionRoot()})
}

func (s *Server) startVoice(ctx context.Context, cmd Command) Response {
	if s.session == nil {
		return failMsg("no active session")
	}
	segmentDir, err := s.session.StartVoice(ctx, cmd.AudioDevice)
	if err != nil {
		return fail(err)
	}
	return ok(VoiceStartInfo{SegmentDir: segmentDir, VoicePath: segmentDir + "/voice.wav"})
}

func (s *Server) stopVoice(ctx context.Context) Response {
	if s.session == nil {
		return failMsg("no active session")
	}
	bundleDir, err := s.session.StopVoice(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(BundleInfo{BundlePath: bundleDir, TraceSession: s.session.TraceSession()})
}

func (s *Server) status() Response {
	if s.session == nil {
		return ok(StatusInfo{IsSessionActive: false, IsVoiceActive: false})
	}
	return ok(StatusInfo{
		IsSessionActive: true,
		IsVoiceActive:   s.session.IsVoiceActive(),
		SessionRoot:     s.session.SessionRoot(),
	})
}
