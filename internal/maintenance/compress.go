package maintenance

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/adatrace/ada-trace/internal/bundle"
	"github.com/adatrace/ada-trace/internal/state"
	"github.com/adatrace/ada-trace/pkg/log"
)

// artifactAge is how long a finalized bundle's screen/voice companion
// files sit untouched before the compression sweep gzips them in place.
// The .atf trace files themselves are never touched here — readers
// memory-map them read-only for as long as a bundle exists.
const artifactAge = 7 * 24 * time.Hour

func (m *Scheduler) registerArtifactCompressionSweep(store *state.Store) {
	if store == nil {
		return
	}
	log.Info("maintenance: registering bundle artifact compression sweep")
	if _, err := scheduleHourly(m, func() {
		sessions, err := store.List()
		if err != nil {
			log.Warnf("maintenance: compression sweep could not list sessions: %v", err)
			return
		}
		for _, sess := range sessions {
			if sess.Status != state.StatusComplete {
				continue
			}
			compressBundlesUnder(sess.SessionPath)
		}
	}); err != nil {
		log.Errorf("maintenance: registering compression sweep failed: %v", err)
	}
}

func compressBundlesUnder(sessionPath string) {
	matches, err := filepath.Glob(filepath.Join(sessionPath, "bundles", "*.adabundle"))
	if err != nil {
		return
	}
	for _, dir := range matches {
		b, err := bundle.Open(dir)
		if err != nil {
			continue
		}
		compressBundleArtifacts(dir, b)
	}
}

func compressBundleArtifacts(dir string, b *bundle.Bundle) {
	m := b.Manifest()
	changed := false

	if p := b.ScreenPath(); p != "" && shouldCompress(p) {
		if gz, err := compressArtifact(p); err == nil {
			m.ScreenPath = relPath(dir, gz)
			changed = true
		} else {
			log.Warnf("maintenance: compressing %s: %v", p, err)
		}
	}
	if p := b.VoicePath(); p != "" && shouldCompress(p) {
		if gz, err := compressArtifact(p); err == nil {
			m.VoicePath = relPath(dir, gz)
			changed = true
		} else {
			log.Warnf("maintenance: compressing %s: %v", p, err)
		}
	}

	if changed {
		if err := bundle.Write(dir, m); err != nil {
			log.Warnf("maintenance: rewriting manifest for %s after compression: %v", dir, err)
		}
	}
}

func shouldCompress(path string) bool {
	if filepath.Ext(path) == ".gz" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > artifactAge
}

func relPath(base, target string) string {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return target
	}
	return rel
}

// compressArtifact gzips fileIn to fileIn+".gz" and removes the original,
// returning the new path.
func compressArtifact(fileIn string) (string, error) {
	fileOut := fileIn + ".gz"

	in, err := os.Open(fileIn)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(fileOut)
	if err != nil {
		return "", err
	}
	defer out.Close()

	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		return "", err
	}
	if err := gw.Close(); err != nil {
		return "", err
	}

	if err := os.Remove(fileIn); err != nil {
		return "", err
	}
	return fileOut, nil
}
