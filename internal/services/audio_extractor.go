package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var ErrNoAudioStream = errors.New("media has no audio stream")

type AudioExtractor interface {
	Extract(ctx context.Context, videoPath string) (*ScratchFile, error)
}

type ffmpegExtractor struct {
	binary  string
	scratch ScratchStorage
}

// NewAudioExtractor converts videos to 16 kHz mono signed 16-bit PCM with ffmpeg.
func NewAudioExtractor(binary string, scratch ScratchStorage) AudioExtractor {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &ffmpegExtractor{binary: binary, scratch: scratch}
}

func (f *ffmpegExtractor) Extract(ctx context.Context, videoPath string) (*ScratchFile, error) {
	if err := f.scratch.EnsureDir(); err != nil {
		return nil, err
	}

	audio := newOwnedScratch(f.scratch.NewPath("audio", ".wav"), "ffmpeg", f.scratch)

	cmd := exec.CommandContext(ctx, f.binary,
		"-y", "-i", videoPath,
		"-vn", "-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1",
		audio.Path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		audio.Release()
		stderrStr := stderr.String()
		if strings.Contains(stderrStr, "Output file does not contain any stream") ||
			strings.Contains(stderrStr, "does not contain any stream") {
			return nil, ErrNoAudioStream
		}
		return nil, newPipelineError(ErrKindAudioExtractionFailed,
			fmt.Errorf("ffmpeg error: %v\nStderr: %s", err, strings.TrimSpace(stderrStr)))
	}

	return audio, nil
}
