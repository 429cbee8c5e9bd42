package maintenance

import (
	"os"
	"path/filepath"

	"github.com/adatrace/ada-trace/internal/reader"
	"github.com/adatrace/ada-trace/pkg/log"
)

// FooterIssue names a trace file whose footer did not validate at open
// time, forcing the reader to fall back to a file-size-derived event
// count.
type FooterIssue struct {
	Path   string
	Reason string
}

// FooterSweeper walks a sessions root and reports files with missing or
// invalid footers. It never mutates the files it finds — repairing a
// footer would mean re-deriving data the writer already chose not to
// persist, which risks compounding a partial write rather than fixing
// it; the sweep exists to surface the problem, not silently patch it.
type FooterSweeper interface {
	Sweep() ([]FooterIssue, error)
}

// DirSweeper implements FooterSweeper by walking every thread_*/index.atf
// and detail.atf beneath SessionsRoot.
type DirSweeper struct {
	SessionsRoot string
}

// Sweep walks SessionsRoot and returns one FooterIssue per file whose
// footer failed to validate.
func (d DirSweeper) Sweep() ([]FooterIssue, error) {
	var issues []FooterIssue

	err := filepath.WalkDir(d.SessionsRoot, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return nil // best-effort: skip unreadable entries, keep walking
		}
		if entry.IsDir() {
			return nil
		}
		switch filepath.Base(path) {
		case "index.atf":
			idx, openErr := reader.OpenIndex(path)
			if openErr != nil {
				issues = append(issues, FooterIssue{Path: path, Reason: openErr.Error()})
				return nil
			}
			if !idx.HasFooter() {
				issues = append(issues, FooterIssue{Path: path, Reason: "missing or invalid footer"})
			}
			idx.Close()
		case "detail.atf":
			det, openErr := reader.OpenDetail(path)
			if openErr != nil {
				issues = append(issues, FooterIssue{Path: path, Reason: openErr.Error()})
				return nil
			}
			if !det.HasFooter() {
				issues = append(issues, FooterIssue{Path: path, Reason: "missing or invalid footer"})
			}
			det.Close()
		}
		return nil
	})
	return issues, err
}

func runFooterSweep(sweeper FooterSweeper) {
	issues, err := sweeper.Sweep()
	if err != nil {
		log.Warnf("maintenance: footer sweep failed: %v", err)
		return
	}
	for _, issue := range issues {
		log.Warnf("maintenance: %s: %s", issue.Path, issue.Reason)
	}
}

func (m *Scheduler) registerFooterRepairSweep(sweeper FooterSweeper) {
	if sweeper == nil {
		return
	}
	log.Info("maintenance: registering footer-repair sweep")
	if _, err := scheduleHourly(m, func() { runFooterSweep(sweeper) }); err != nil {
		log.Errorf("maintenance: registering footer-repair sweep failed: %v", err)
	}

	if dirSweeper, ok := sweeper.(DirSweeper); ok {
		watcher, err := WatchFinalization(dirSweeper.SessionsRoot, func() { runFooterSweep(sweeper) })
		if err != nil {
			log.Warnf("maintenance: watching %s for finalized sessions: %v", dirSweeper.SessionsRoot, err)
			return
		}
		m.watcher = watcher
	}
}
