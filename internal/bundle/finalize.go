package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/adatrace/ada-trace/pkg/log"
)

// Finalize moves a segment's recorded artifacts and copies its trace
// session subtree into <sessionRoot>/bundles/segment_NNN.adabundle/,
// writing the bundle manifest there. It never rewrites trace files; the
// trace subtree is copied, not moved, so the live session directory is
// untouched.
func Finalize(sessionRoot, segmentDir, traceSessionDir string, segmentIndex int, m Manifest) (bundleDir string, err error) {
	bundleName := fmt.Sprintf("segment_%03d.adabundle", segmentIndex)
	bundleDir = filepath.Join(sessionRoot, "bundles", bundleName)
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return "", fmt.Errorf("bundle: create dir: %w", err)
	}

	screenPath, err := moveIfExists(filepath.Join(segmentDir, "screen.mp4"), bundleDir)
	if err != nil {
		return "", err
	}
	voicePath, err := moveIfExists(filepath.Join(segmentDir, "voice.m4a"), bundleDir)
	if err != nil {
		return "", err
	}
	voiceLosslessPath, err := moveIfExists(filepath.Join(segmentDir, "voice.wav"), bundleDir)
	if err != nil {
		return "", err
	}
	voiceLogPath, err := moveIfExists(filepath.Join(segmentDir, "voice_ffmpeg.log"), bundleDir)
	if err != nil {
		return "", err
	}
	screenLogPath, err := moveIfExists(filepath.Join(segmentDir, "screen_ffmpeg.log"), bundleDir)
	if err != nil {
		return "", err
	}

	traceBundlePath := filepath.Join(bundleDir, "trace")
	if traceSessionDir != "" {
		if err := copyDirRecursive(traceSessionDir, traceBundlePath); err != nil {
			return "", fmt.Errorf("bundle: copy trace subtree: %w", err)
		}
		m.TraceSession = "trace"
	}

	m.ScreenPath = screenPath
	m.VoicePath = voicePath
	m.VoiceLosslessPath = voiceLosslessPath
	m.VoiceLogPath = voiceLogPath
	m.ScreenLogPath = screenLogPath
	m.SegmentIndex = segmentIndex

	if err := Write(bundleDir, m); err != nil {
		return "", fmt.Errorf("bundle: write manifest: %w", err)
	}
	return bundleDir, nil
}

// moveIfExists moves src into destDir, returning the base name relative to
// destDir, or "" if src does not exist.
func moveIfExists(src, destDir string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", nil
	}
	name := filepath.Base(src)
	dst := filepath.Join(destDir, name)
	if err := os.Rename(src, dst); err != nil {
		// Cross-device rename fails with EXDEV; fall back to copy+remove.
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("bundle: move %s: %w", src, err)
		}
		os.Remove(src)
	}
	return name, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func copyDirRecursive(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if err := copyFile(path, target); err != nil {
			log.Warnf("bundle: copy %s: %v", path, err)
			return err
		}
		return nil
	})
}
