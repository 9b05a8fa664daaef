package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
)

// Transcoder converts vendor-native audio (MP3 from ElevenLabs, WAV from
// Piper) to the raw μ-law 8kHz mono stream the telephony transport expects.
type Transcoder interface {
	Transcode(ctx context.Context, in []byte) ([]byte, error)
}

// FFmpegTranscoder shells out to ffmpeg. The codec itself stays an external
// process; callflow only pipes bytes through it.
type FFmpegTranscoder struct {
	path string
}

// NewFFmpegTranscoder creates a transcoder using the given ffmpeg binary
// ("ffmpeg" resolves via PATH).
func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{path: path}
}

// Transcode decodes whatever container ffmpeg can sniff from stdin and
// emits headerless μ-law at 8kHz mono on stdout.
func (t *FFmpegTranscoder) Transcode(ctx context.Context, in []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, t.path,
		"-i", "pipe:0",
		"-ar", "8000",
		"-ac", "1",
		"-f", "mulaw",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(in)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = io.Discard

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg transcode: %w", err)
	}

	slog.Debug("transcoded audio", "in_bytes", len(in), "out_bytes", out.Len())
	return out.Bytes(), nil
}
