// Package bundle implements the on-disk capture segment bundle: its
// manifest, directory layout, and the Open/finalize operations that move
// screen/voice artifacts and the trace subtree into a single
// "segment_NNN.adabundle/" directory.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Manifest is the bundle manifest.json document: a superset of the
// session manifest with additional media paths and capture-segment
// bookkeeping. Paths are relative to the bundle root.
type Manifest struct {
	Version           int    `json:"version"`
	CreatedAtMs       int64  `json:"created_at_ms"`
	FinishedAtMs      int64  `json:"finished_at_ms"`
	SessionName       string `json:"session_name"`
	TraceRoot         string `json:"trace_root"`
	TraceSession      string `json:"trace_session,omitempty"`
	ScreenPath        string `json:"screen_path,omitempty"`
	VoicePath         string `json:"voice_path,omitempty"`
	VoiceLosslessPath string `json:"voice_lossless_path,omitempty"`
	VoiceLogPath      string `json:"voice_log_path,omitempty"`
	ScreenLogPath     string `json:"screen_log_path,omitempty"`
	DetailWhenVoice   bool   `json:"detail_when_voice"`
	SegmentStartMs    int64  `json:"segment_start_ms"`
	SegmentEndMs      int64  `json:"segment_end_ms"`
	SegmentIndex      int    `json:"segment_index"`
}

// Bundle is an opened, validated bundle directory.
type Bundle struct {
	dir      string
	manifest Manifest
}

// Open validates that dir contains a manifest.json with a non-empty
// TraceSession.
func Open(dir string) (*Bundle, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		return nil, fmt.Errorf("bundle: read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("bundle: parse manifest: %w", err)
	}
	if m.TraceSession == "" {
		return nil, fmt.Errorf("bundle: manifest missing trace_session")
	}
	return &Bundle{dir: dir, manifest: m}, nil
}

// Manifest returns the parsed manifest.
func (b *Bundle) Manifest() Manifest { return b.manifest }

// TracePath returns the absolute path of the bundled trace subtree.
func (b *Bundle) TracePath() string {
	return filepath.Join(b.dir, b.manifest.TraceSession)
}

// ScreenPath returns the absolute screen recording path, or "" if none was
// captured.
func (b *Bundle) ScreenPath() string {
	if b.manifest.ScreenPath == "" {
		return ""
	}
	return filepath.Join(b.dir, b.manifest.ScreenPath)
}

// VoicePath returns the absolute encoded-voice path, or "" if none was
// captured.
func (b *Bundle) VoicePath() string {
	if b.manifest.VoicePath == "" {
		return ""
	}
	return filepath.Join(b.dir, b.manifest.VoicePath)
}

// Write serializes m as pretty JSON to dir/manifest.json.
func Write(dir string, m Manifest) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), raw, 0o644)
}
