// Package capture turns an audio input into a lazy sequence of timed slices.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

// Pacer supplies the current slice timing. Values are read at every slice
// boundary, never cached for the stream's lifetime.
type Pacer interface {
	ChunkDuration() time.Duration
	CaptureInterval() time.Duration
}

// DefaultConstraints requests mono 16 kHz audio with echo cancellation and
// noise suppression as best-effort hints.
func DefaultConstraints() repositories.MediaConstraints {
	return repositories.MediaConstraints{
		SampleRate:       16000,
		ChannelCount:     1,
		EchoCancellation: true,
		NoiseSuppression: true,
	}
}

// Source acquires capture streams from a media provider.
type Source struct {
	media       repositories.MediaCapture
	pacer       Pacer
	constraints repositories.MediaConstraints
	logger      *zap.Logger

	// sleep waits d or until ctx ends; it reports whether the full wait elapsed.
	sleep func(ctx context.Context, d time.Duration) bool
}

// NewSource creates a capture source.
func NewSource(media repositories.MediaCapture, pacer Pacer, logger *zap.Logger) *Source {
	return &Source{
		media:       media,
		pacer:       pacer,
		constraints: DefaultConstraints(),
		logger:      logger,
		sleep:       sleepContext,
	}
}

// Open acquires the input device. Any failure is reported as
// domain.ErrMediaAccessDenied.
func (s *Source) Open(ctx context.Context) (*Stream, error) {
	stream, err := s.media.Acquire(ctx, s.constraints)
	if err != nil {
		if errors.Is(err, domain.ErrMediaAccessDenied) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaAccessDenied, err)
	}

	s.logger.Info("Capture stream acquired",
		zap.Int("sampleRate", s.constraints.SampleRate),
		zap.Int("channels", s.constraints.ChannelCount))

	return &Stream{
		stream: stream,
		pacer:  s.pacer,
		sleep:  s.sleep,
		logger: s.logger,
	}, nil
}

// Stream is an open capture. It is owned by a single goroutine.
type Stream struct {
	stream   repositories.MediaStream
	pacer    Pacer
	sleep    func(ctx context.Context, d time.Duration) bool
	stopOnce sync.Once
	logger   *zap.Logger
}

// Chunks yields captured slices until ctx ends, the stream is exhausted, or
// the consumer stops iterating. Each slice is sized by the chunk duration in
// effect when it starts; the next slice starts no earlier than the capture
// interval after the previous one. Empty slices are skipped. A capture
// failure is yielded once as an error and ends the sequence.
func (st *Stream) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for ctx.Err() == nil {
			start := time.Now()
			duration := st.pacer.ChunkDuration()

			chunk, err := st.stream.ReadSlice(ctx, duration)
			if len(chunk) > 0 {
				if !yield(chunk, nil) {
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return
				}
				yield(nil, fmt.Errorf("capture slice: %w", err))
				return
			}

			if wait := st.pacer.CaptureInterval() - time.Since(start); wait > 0 {
				if !st.sleep(ctx, wait) {
					return
				}
			}
		}
	}
}

// Stop releases the underlying device. It is safe to call more than once.
func (st *Stream) Stop() error {
	var err error
	st.stopOnce.Do(func() {
		err = st.stream.Stop()
		st.logger.Info("Capture stream released")
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
