package repositories

import (
	"context"
	"time"
)

// MediaConstraints are requested from a capture device. EchoCancellation and
// NoiseSuppression are hints; a device lacking them is still usable.
type MediaConstraints struct {
	SampleRate       int  `json:"sample_rate"`
	ChannelCount     int  `json:"channel_count"`
	EchoCancellation bool `json:"echo_cancellation"`
	NoiseSuppression bool `json:"noise_suppression"`
}

// MediaCapture grants access to an audio input.
type MediaCapture interface {
	// Acquire returns a stream or an error wrapping domain.ErrMediaAccessDenied.
	Acquire(ctx context.Context, constraints MediaConstraints) (MediaStream, error)
}

// MediaStream is an acquired audio input, exclusively owned by its caller.
type MediaStream interface {
	// ReadSlice blocks until d worth of audio has been captured and returns
	// it. io.EOF marks the end of a finite stream.
	ReadSlice(ctx context.Context, d time.Duration) ([]byte, error)
	// Stop releases the underlying device.
	Stop() error
}
