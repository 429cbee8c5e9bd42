package maintenance

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatchFinalizationFiresOnManifestWrite(t *testing.T) {
	root := t.TempDir()

	var fired int32
	w, err := WatchFinalization(root, func() { atomic.AddInt32(&fired, 1) })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(root, "manifest.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&fired) > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected the finalization callback to fire after a manifest.json write")
}

func TestWatchFinalizationIgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()

	var fired int32
	w, err := WatchFinalization(root, func() { atomic.AddInt32(&fired, 1) })
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(root, "index.atf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&fired) != 0 {
		t.Fatal("expected writes to unrelated files not to trigger the finalization callback")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := WatchFinalization(t.TempDir(), func() {})
	if err != nil {
		t.Fatal(err)
	}
	w.Close()
	w.Close() // must not panic
}
