package bundle

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFinalizeMovesArtifactsAndWritesManifest(t *testing.T) {
	sessionRoot := t.TempDir()
	segmentDir := filepath.Join(sessionRoot, "segment_000")
	traceDir := filepath.Join(sessionRoot, "trace_live")

	writeFile(t, filepath.Join(segmentDir, "screen.mp4"), "screen-bytes")
	writeFile(t, filepath.Join(segmentDir, "voice.m4a"), "voice-bytes")
	writeFile(t, filepath.Join(traceDir, "thread_1", "index.atf"), "index-bytes")

	bundleDir, err := Finalize(sessionRoot, segmentDir, traceDir, 0, Manifest{SessionName: "s1"})
	if err != nil {
		t.Fatal(err)
	}

	wantBundleDir := filepath.Join(sessionRoot, "bundles", "segment_000.adabundle")
	if bundleDir != wantBundleDir {
		t.Fatalf("expected bundle dir %s, got %s", wantBundleDir, bundleDir)
	}

	if _, err := os.Stat(filepath.Join(bundleDir, "screen.mp4")); err != nil {
		t.Fatalf("expected screen.mp4 to be moved into the bundle: %v", err)
	}
	if _, err := os.Stat(segmentDir + "/screen.mp4"); !os.IsNotExist(err) {
		t.Fatal("expected screen.mp4 to no longer exist in the segment dir")
	}
	if _, err := os.Stat(filepath.Join(bundleDir, "voice.m4a")); err != nil {
		t.Fatalf("expected voice.m4a to be moved into the bundle: %v", err)
	}

	if _, err := os.Stat(filepath.Join(bundleDir, "trace", "thread_1", "index.atf")); err != nil {
		t.Fatalf("expected the trace subtree to be copied into the bundle: %v", err)
	}
	if _, err := os.Stat(filepath.Join(traceDir, "thread_1", "index.atf")); err != nil {
		t.Fatalf("expected the live trace subtree to remain untouched: %v", err)
	}

	b, err := Open(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	m := b.Manifest()
	if m.ScreenPath != "screen.mp4" || m.VoicePath != "voice.m4a" {
		t.Fatalf("unexpected manifest media paths: %+v", m)
	}
	if m.TraceSession != "trace" {
		t.Fatalf("expected trace_session to be \"trace\", got %q", m.TraceSession)
	}
	if m.SegmentIndex != 0 {
		t.Fatalf("expected segment index 0, got %d", m.SegmentIndex)
	}
}

func TestFinalizeSkipsMissingOptionalArtifacts(t *testing.T) {
	sessionRoot := t.TempDir()
	segmentDir := filepath.Join(sessionRoot, "segment_001")
	if err := os.MkdirAll(segmentDir, 0o755); err != nil {
		t.Fatal(err)
	}

	bundleDir, err := Finalize(sessionRoot, segmentDir, "", 1, Manifest{SessionName: "s1"})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() == "trace" {
			t.Fatal("expected no trace subtree when traceSessionDir is empty")
		}
	}

	raw, err := os.ReadFile(filepath.Join(bundleDir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) == 0 {
		t.Fatal("expected a non-empty manifest.json")
	}
}

func TestOpenRejectsManifestWithoutTraceSession(t *testing.T) {
	dir := t.TempDir()
	if err := Write(dir, Manifest{SessionName: "no-trace"}); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir); err == nil {
		t.Fatal("expected Open to reject a manifest with an empty trace_session")
	}
}

func TestBundlePathHelpers(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{TraceSession: "trace", ScreenPath: "screen.mp4"}
	if err := Write(dir, m); err != nil {
		t.Fatal(err)
	}
	b, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "trace"); b.TracePath() != want {
		t.Fatalf("expected trace path %s, got %s", want, b.TracePath())
	}
	if want := filepath.Join(dir, "screen.mp4"); b.ScreenPath() != want {
		t.Fatalf("expected screen path %s, got %s", want, b.ScreenPath())
	}
	if b.VoicePath() != "" {
		t.Fatalf("expected empty voice path when manifest has none, got %q", b.VoicePath())
	}
}
