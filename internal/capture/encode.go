package capture

import (
	"os/exec"
	"path/filepath"

	"github.com/adatrace/ada-trace/pkg/log"
)

// EncodeVoiceToAAC converts segmentDir/voice.wav to segmentDir/voice.m4a
// via an external encoder (ffmpeg) if one is present on PATH. An encoder
// failure or absence only warns; the lossless WAV is kept and the AAC
// path is simply omitted from the bundle manifest.
func EncodeVoiceToAAC(segmentDir string) {
	wav := filepath.Join(segmentDir, "voice.wav")
	m4a := filepath.Join(segmentDir, "voice.m4a")

	if _, err := exec.LookPath("ffmpeg"); err != nil {
		log.Warnf("capture: ffmpeg not found, keeping lossless voice.wav only")
		return
	}
	cmd := exec.Command("ffmpeg", "-y", "-i", wav, "-c:a", "aac", "-b:a", "192k", m4a)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Warnf("capture: ffmpeg encode failed, keeping lossless voice.wav only: %v (%s)", err, out)
	}
}
