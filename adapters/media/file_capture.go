// Package media provides capture sources backed by audio files.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/wav"
)

// FileCapture plays an audio file back as if it were a live input. WAV files
// are read with their own format; anything else is treated as raw 16-bit PCM
// in the requested layout.
type FileCapture struct {
	path     string
	realtime bool
	logger   *zap.Logger
}

var _ repositories.MediaCapture = (*FileCapture)(nil)

// NewFileCapture creates a capture source reading path. With realtime set,
// each slice takes as long to read as the audio it holds.
func NewFileCapture(path string, realtime bool, logger *zap.Logger) *FileCapture {
	return &FileCapture{path: path, realtime: realtime, logger: logger}
}

// Acquire implements repositories.MediaCapture. A missing or unreadable file
// is reported as domain.ErrMediaAccessDenied.
func (f *FileCapture) Acquire(ctx context.Context, constraints repositories.MediaConstraints) (repositories.MediaStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaAccessDenied, err)
	}

	format := wav.Format{
		SampleRate:  constraints.SampleRate,
		Channels:    constraints.ChannelCount,
		SampleWidth: 2,
	}
	pcm := data
	if wav.IsRIFF(data) {
		format, pcm, err = wav.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMediaAccessDenied, err)
		}
	}
	if format.ByteRate() <= 0 {
		return nil, fmt.Errorf("%w: unusable audio format %+v", domain.ErrMediaAccessDenied, format)
	}

	if format.SampleRate != constraints.SampleRate || format.Channels != constraints.ChannelCount {
		// Constraints are hints; the file is streamed in its own format.
		f.logger.Warn("Capture file does not match requested constraints",
			zap.String("path", f.path),
			zap.Int("sampleRate", format.SampleRate),
			zap.Int("channels", format.Channels))
	}

	f.logger.Info("Capture file opened",
		zap.String("path", f.path),
		zap.Int("bytes", len(pcm)),
		zap.Int("sampleRate", format.SampleRate))

	return &fileStream{
		pcm:      pcm,
		format:   format,
		realtime: f.realtime,
	}, nil
}

type fileStream struct {
	pcm      []byte
	offset   int
	format   wav.Format
	realtime bool
	stopped  bool
}

// ReadSlice returns the next d worth of audio, rounded to whole frames.
func (s *fileStream) ReadSlice(ctx context.Context, d time.Duration) ([]byte, error) {
	if s.stopped {
		return nil, errors.New("capture stream stopped")
	}
	if s.offset >= len(s.pcm) {
		return nil, io.EOF
	}

	frame := s.format.Channels * s.format.SampleWidth
	size := int(int64(s.format.ByteRate()) * int64(d) / int64(time.Second))
	size -= size % frame
	if size < frame {
		size = frame
	}
	end := min(s.offset+size, len(s.pcm))
	chunk := s.pcm[s.offset:end]

	if s.realtime {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	s.offset = end
	return chunk, nil
}

func (s *fileStream) Stop() error {
	s.stopped = true
	return nil
}
