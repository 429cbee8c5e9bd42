package capture

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/adatrace/ada-trace/internal/bundle"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
)

// pollInterval is the monitor loop's cadence for checking interrupt,
// target liveness, and exit status.
const pollInterval = 100 * time.Millisecond

// StartOptions are the inputs to Session.Start, corresponding to the
// daemon's start_session command.
type StartOptions struct {
	Binary        string
	Args          []string
	PID           int // attach mode when non-zero; Binary/Args ignored
	Output        string
	NoScreen      bool
	NoVoice       bool
	PreRollMs     int
	PostRollMs    int
}

// Session drives one capture's full lifecycle: spawn/attach, hook
// install, monitor, and segment-based voice recording into bundles.
type Session struct {
	Controller TracerController
	state      State

	sessionRoot  string
	traceRoot    string
	traceSession string

	pid int

	screenRecorder *RecorderChild
	voiceRecorder  *RecorderChild

	segmentIndex    int
	segmentStartMs  int64
	activeSegmentDir string
	isVoiceActive   bool

	store *state.Store
}

// Start performs the full spawn/attach → install → trigger → resume
// sequence. On a failure after the trace directory exists, the session is
// marked Failed and the error returned; the trace directory and any
// spawned or attached target are left as they are, and no sidecar record
// is written.
func Start(ctx context.Context, ctrl TracerController, store *state.Store, opts StartOptions) (*Session, error) {
	s := &Session{Controller: ctrl, state: StateIdle, store: store}

	name := filepath.Base(opts.Binary)
	if opts.PID != 0 {
		name = fmt.Sprintf("pid_%d", opts.PID)
	}
	root := opts.Output
	if root == "" {
		root = "."
	}
	sessionDir := fmt.Sprintf("session_%d_%s", time.Now().Unix(), name)
	s.sessionRoot = filepath.Join(root, sessionDir)
	s.traceRoot = filepath.Join(s.sessionRoot, "trace")

	if err := os.MkdirAll(s.traceRoot, 0o755); err != nil {
		return nil, fmt.Errorf("capture: create trace dir: %w", err)
	}
	s.traceSession = s.traceRoot

	s.state = StateSpawning
	if opts.PID != 0 {
		if err := ctrl.Attach(ctx, opts.PID); err != nil {
			s.fail()
			return nil, fmt.Errorf("capture: attach pid %d: %w", opts.PID, err)
		}
		s.pid = opts.PID
	} else {
		pid, err := ctrl.SpawnSuspended(ctx, opts.Binary, opts.Args)
		if err != nil {
			s.fail()
			return nil, fmt.Errorf("capture: spawn %s: %w", opts.Binary, err)
		}
		s.pid = pid
	}

	if err := ctrl.InstallHooks(ctx); err != nil {
		s.fail()
		return nil, fmt.Errorf("capture: install hooks: %w", err)
	}
	s.state = StateHooked

	detailEnabled := !opts.NoVoice
	if err := ctrl.SetDetailEnabled(ctx, detailEnabled); err != nil {
		s.fail()
		return nil, fmt.Errorf("capture: set detail enabled: %w", err)
	}
	if !opts.NoVoice {
		if err := ctrl.ArmTrigger(ctx, opts.PreRollMs, opts.PostRollMs); err != nil {
			s.fail()
			return nil, fmt.Errorf("capture: arm trigger: %w", err)
		}
		if err := ctrl.FireTrigger(ctx); err != nil {
			s.fail()
			return nil, fmt.Errorf("capture: fire trigger: %w", err)
		}
	}

	if err := ctrl.Resume(ctx); err != nil {
		s.fail()
		return nil, fmt.Errorf("capture: resume: %w", err)
	}
	s.state = StateRunning

	if !opts.NoScreen {
		rc, err := s.startScreenRecorder(s.traceRoot)
		if err != nil {
			log.Warnf("capture: screen recorder unavailable, continuing without video: %v", err)
		} else {
			s.screenRecorder = rc
			time.Sleep(500 * time.Millisecond)
		}
	}

	if store != nil {
		capturePID := os.Getpid()
		pid := s.pid
		err := store.Save(state.Session{
			SessionID:   sessionDir,
			SessionPath: s.sessionRoot,
			StartTime:   time.Now().Unix(),
			AppInfo:     opts.Binary,
			Status:      state.StatusRunning,
			PID:         &pid,
			CapturePID:  &capturePID,
		})
		if err != nil {
			log.Warnf("capture: could not persist session state: %v", err)
		}
	}

	return s, nil
}

func (s *Session) fail() {
	s.state = StateFailed
}

// SessionRoot returns the capture's session directory.
func (s *Session) SessionRoot() string { return s.sessionRoot }

// TraceRoot returns the session's trace subdirectory.
func (s *Session) TraceRoot() string { return s.traceRoot }

// TraceSession returns the currently discovered trace session directory,
// or "" if none has been identified yet.
func (s *Session) TraceSession() string { return s.traceSession }

// IsVoiceActive reports whether a voice/screen segment is currently being
// recorded.
func (s *Session) IsVoiceActive() bool { return s.isVoiceActive }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

func (s *Session) startScreenRecorder(into string) (*RecorderChild, error) {
	logPath := filepath.Join(into, "screen_ffmpeg.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command("screen-recorder", "--output", filepath.Join(into, "screen.mp4"))
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	return StartRecorder("screen", cmd)
}

// StartVoice begins a new capture segment: arms and fires the trigger,
// enables full detail, and spawns a screen recorder scoped to this
// segment's directory.
func (s *Session) StartVoice(ctx context.Context, audioDevice string) (segmentDir string, err error) {
	s.segmentIndex++
	segmentDir = filepath.Join(s.sessionRoot, "recordings", fmt.Sprintf("segment_%03d", s.segmentIndex))
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		return "", fmt.Errorf("capture: create segment dir: %w", err)
	}

	if err := s.Controller.ArmTrigger(ctx, 0, 0); err != nil {
		return "", fmt.Errorf("capture: arm trigger: %w", err)
	}
	if err := s.Controller.FireTrigger(ctx); err != nil {
		return "", fmt.Errorf("capture: fire trigger: %w", err)
	}
	if err := s.Controller.SetDetailEnabled(ctx, true); err != nil {
		return "", fmt.Errorf("capture: set detail enabled: %w", err)
	}
	s.state = StateRecording

	rc, err := s.startScreenRecorder(segmentDir)
	if err != nil {
		log.Warnf("capture: segment screen recorder unavailable: %v", err)
	} else {
		s.screenRecorder = rc
	}

	args := []string{"--output", filepath.Join(segmentDir, "voice.wav")}
	if audioDevice != "" {
		args = append(args, "--device", audioDevice)
	}
	voiceLog, err := os.Create(filepath.Join(segmentDir, "voice_ffmpeg.log"))
	if err == nil {
		cmd := exec.Command("voice-recorder", args...)
		cmd.Stdout = voiceLog
		cmd.Stderr = voiceLog
		if rc, err := StartRecorder("voice", cmd); err == nil {
			s.voiceRecorder = rc
		} else {
			log.Warnf("capture: voice recorder unavailable: %v", err)
		}
	}

	s.segmentStartMs = time.Now().UnixMilli()
	s.activeSegmentDir = segmentDir
	s.isVoiceActive = true
	return segmentDir, nil
}

// StopVoice stops the active segment's recorders, encodes lossless audio
// to AAC if an encoder is present, and finalizes the segment into a
// bundle.
func (s *Session) StopVoice(ctx context.Context) (bundleDir string, err error) {
	if !s.isVoiceActive {
		return "", fmt.Errorf("capture: voice recording not active")
	}
	segmentStartMs := s.segmentStartMs
	segmentEndMs := time.Now().UnixMilli()
	segmentIndex := s.segmentIndex

	if s.screenRecorder != nil {
		if err := s.screenRecorder.Stop(); err != nil {
			log.Warnf("capture: stop screen recorder: %v", err)
		}
		s.screenRecorder = nil
	}
	if s.voiceRecorder != nil {
		if err := s.voiceRecorder.Stop(); err != nil {
			log.Warnf("capture: stop voice recorder: %v", err)
		}
		s.voiceRecorder = nil
	}
	s.isVoiceActive = false

	_ = s.Controller.SetDetailEnabled(ctx, false)
	_ = s.Controller.DisarmTrigger(ctx)

	segmentDir := s.activeSegmentDir
	if segmentDir == "" {
		segmentDir = filepath.Join(s.sessionRoot, "recordings", fmt.Sprintf("segment_%03d", segmentIndex))
	}
	s.activeSegmentDir = ""

	EncodeVoiceToAAC(segmentDir)

	m := bundle.Manifest{
		Version:         1,
		CreatedAtMs:     segmentStartMs,
		FinishedAtMs:    segmentEndMs,
		SessionName:     filepath.Base(s.sessionRoot),
		TraceRoot:       "trace",
		DetailWhenVoice: true,
		SegmentStartMs:  segmentStartMs,
		SegmentEndMs:    segmentEndMs,
	}
	bundleDir, err = bundle.Finalize(s.sessionRoot, segmentDir, s.traceSession, segmentIndex, m)
	if err != nil {
		return "", err
	}
	if s.traceSession != "" {
		s.traceSession = filepath.Join(bundleDir, "trace")
	}
	return bundleDir, nil
}

// Stop tears down the capture entirely: stops any active recorders,
// disarms and detaches, and marks the sidecar state Complete (or Failed if
// the capture PID is already dead).
func (s *Session) Stop(ctx context.Context) error {
	s.state = StateStopping

	if s.isVoiceActive {
		if _, err := s.StopVoice(ctx); err != nil {
			log.Warnf("capture: stop voice during session stop: %v", err)
		}
	}
	if s.screenRecorder != nil {
		_ = s.screenRecorder.Stop()
		s.screenRecorder = nil
	}

	_ = s.Controller.SetDetailEnabled(ctx, false)
	_ = s.Controller.DisarmTrigger(ctx)
	if err := s.Controller.Detach(ctx); err != nil {
		log.Warnf("capture: detach: %v", err)
	}

	if s.store != nil {
		if rec, err := s.store.Load(filepath.Base(s.sessionRoot)); err == nil {
			end := time.Now().Unix()
			rec.EndTime = &end
			rec.Status = state.StatusComplete
			if rec.CapturePID != nil && !state.ProcessAlive(*rec.CapturePID) {
				rec.Status = state.StatusFailed
			}
			if err := s.store.Save(rec); err != nil {
				log.Warnf("capture: could not persist session state: %v", err)
			}
		}
	}

	s.state = StateFinalizing
	s.state = StateComplete
	return nil
}

// ExitReason classifies how the target process ended.
type ExitReason struct {
	Code   int
	Signal string
	Note   string
}

func (r ExitReason) String() string {
	switch {
	case r.Signal != "":
		return fmt.Sprintf("terminated by signal %s", r.Signal)
	case r.Note != "":
		return r.Note
	default:
		return fmt.Sprintf("exited with code %d", r.Code)
	}
}

// MonitorLoop polls at pollInterval for operator interrupt, target exit
// (non-blocking reap when the target is a direct child), and a signal-0
// liveness probe otherwise. It returns once the target has exited or ctx
// is canceled.
func MonitorLoop(ctx context.Context, pid int, interrupted <-chan struct{}) ExitReason {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ExitReason{Note: "context canceled"}
		case <-interrupted:
			return ExitReason{Note: "operator interrupt"}
		case <-ticker.C:
			var ws syscall.WaitStatus
			reapedPID, err := syscall.Wait4(pid, &ws, syscall.WNOHANG, nil)
			if err == nil && reapedPID == pid {
				if ws.Exited() {
					return ExitReason{Code: ws.ExitStatus()}
				}
				if ws.Signaled() {
					return ExitReason{Signal: ws.Signal().String()}
				}
				continue
			}
			// ECHILD means pid is not our child (attach mode): fall back
			// to a non-invasive liveness probe instead of reaping.
			if err == syscall.ECHILD && !state.ProcessAlive(pid) {
				return ExitReason{Note: "target process exited (not a child)"}
			}
		}
	}
}
