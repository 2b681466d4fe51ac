// Package playback stores decoded response audio as WAV files.
package playback

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/wav"
)

// WAVFileSink writes every response to its own file so it can be replayed.
type WAVFileSink struct {
	dir    string
	seq    atomic.Uint64
	now    func() time.Time
	logger *zap.Logger
}

var _ repositories.AudioSink = (*WAVFileSink)(nil)

// NewWAVFileSink creates a sink writing into dir.
func NewWAVFileSink(dir string, logger *zap.Logger) *WAVFileSink {
	return &WAVFileSink{dir: dir, now: time.Now, logger: logger}
}

// Play implements repositories.AudioSink. Payloads that already carry a RIFF
// header are written as-is; raw PCM is wrapped using format.
func (s *WAVFileSink) Play(ctx context.Context, audio []byte, format repositories.AudioFormat) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("no audio to store")
	}

	content := audio
	if !wav.IsRIFF(audio) {
		content = wav.Encode(audio, wav.Format{
			SampleRate:  format.SampleRate,
			Channels:    format.Channels,
			SampleWidth: format.SampleWidth,
		})
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create audio directory: %w", err)
	}

	name := fmt.Sprintf("%d-%d.wav", s.now().UnixNano(), s.seq.Add(1))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audio file: %w", err)
	}

	s.logger.Info("Response audio stored",
		zap.String("path", path),
		zap.Int("bytes", len(content)),
		zap.Bool("wrapped", len(content) != len(audio)))
	return path, nil
}
