package maintenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adatrace/ada-trace/internal/bundle"
)

func writeManifest(t *testing.T, dir string, m bundle.Manifest) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := bundle.Write(dir, m); err != nil {
		t.Fatal(err)
	}
}

func TestCompressBundleArtifactsGzipsOldFiles(t *testing.T) {
	bundleDir := t.TempDir()
	screenPath := filepath.Join(bundleDir, "screen.mp4")
	if err := os.WriteFile(screenPath, []byte("video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-8 * 24 * time.Hour)
	if err := os.Chtimes(screenPath, old, old); err != nil {
		t.Fatal(err)
	}

	writeManifest(t, bundleDir, bundle.Manifest{TraceSession: "trace", ScreenPath: "screen.mp4"})

	b, err := bundle.Open(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	compressBundleArtifacts(bundleDir, b)

	if _, err := os.Stat(screenPath); !os.IsNotExist(err) {
		t.Fatalf("expected original screen.mp4 to be removed, stat err: %v", err)
	}
	if _, err := os.Stat(screenPath + ".gz"); err != nil {
		t.Fatalf("expected screen.mp4.gz to exist: %v", err)
	}

	reopened, err := bundle.Open(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Manifest().ScreenPath != "screen.mp4.gz" {
		t.Fatalf("expected manifest to be rewritten to point at the .gz file, got %q", reopened.Manifest().ScreenPath)
	}
}

func TestCompressBundleArtifactsSkipsRecentFiles(t *testing.T) {
	bundleDir := t.TempDir()
	screenPath := filepath.Join(bundleDir, "screen.mp4")
	if err := os.WriteFile(screenPath, []byte("video bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	writeManifest(t, bundleDir, bundle.Manifest{TraceSession: "trace", ScreenPath: "screen.mp4"})

	b, err := bundle.Open(bundleDir)
	if err != nil {
		t.Fatal(err)
	}
	compressBundleArtifacts(bundleDir, b)

	if _, err := os.Stat(screenPath); err != nil {
		t.Fatalf("expected a fresh screen.mp4 to be left alone, stat err: %v", err)
	}
	if _, err := os.Stat(screenPath + ".gz"); !os.IsNotExist(err) {
		t.Fatal("did not expect a .gz file for a recently-written artifact")
	}
}

func TestShouldCompressIgnoresAlreadyGzipped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voice.m4a.gz")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-30 * 24 * time.Hour)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	if shouldCompress(path) {
		t.Fatal("an already-gzipped file should never be recompressed")
	}
}
