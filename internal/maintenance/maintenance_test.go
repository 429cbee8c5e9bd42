package maintenance

import (
	"os"
	"path/filepath"
	"testing"
)

type fakeSweeper struct {
	issues []FooterIssue
}

func (f fakeSweeper) Sweep() ([]FooterIssue, error) { return f.issues, nil }

func TestDirSweeperFindsMissingFooter(t *testing.T) {
	// A file too small to even be a valid index header should surface as
	// an issue rather than stopping the walk.
	dir := t.TempDir()
	threadDir := filepath.Join(dir, "thread_0")
	if err := os.MkdirAll(threadDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(threadDir, "index.atf"), []byte("too small"), 0o644); err != nil {
		t.Fatal(err)
	}

	sweeper := DirSweeper{SessionsRoot: dir}
	issues, err := sweeper.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 1 || issues[0].Path != filepath.Join(threadDir, "index.atf") {
		t.Fatalf("expected one issue for the malformed index file, got %+v", issues)
	}
}

func TestDirSweeperEmptyDir(t *testing.T) {
	sweeper := DirSweeper{SessionsRoot: t.TempDir()}
	issues, err := sweeper.Sweep()
	if err != nil {
		t.Fatal(err)
	}
	if len(issues) != 0 {
		t.Fatalf("expected no issues in an empty directory, got %+v", issues)
	}
}
