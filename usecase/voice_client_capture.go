package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

type captureChunk struct {
	data []byte
}

type captureStopped struct {
	gen uint64
	err error
}

// StartRecording starts streaming captured audio. It requires an open
// connection and is a no-op while already recording.
func (c *VoiceClient) StartRecording(ctx context.Context) error {
	return c.do(ctx, c.startRecording)
}

// StopRecording stops capture and releases the input device. Chunks already
// handed to the loop are still sent.
func (c *VoiceClient) StopRecording(ctx context.Context) error {
	return c.do(ctx, func() error {
		if !c.recording {
			return nil
		}
		c.stopCapture()
		c.appendLog("Stopped recording audio", entities.SeveritySent)
		return nil
	})
}

// ToggleRecording flips the capture state and reports whether capture is on.
func (c *VoiceClient) ToggleRecording(ctx context.Context) (bool, error) {
	var recording bool
	err := c.do(ctx, func() error {
		if c.recording {
			c.stopCapture()
			c.appendLog("Stopped recording audio", entities.SeveritySent)
		} else if err := c.startRecording(); err != nil {
			return err
		}
		recording = c.recording
		return nil
	})
	return recording, err
}

func (c *VoiceClient) startRecording() error {
	if c.recording {
		return nil
	}
	if c.socket == nil || !c.machine.State().IsOpen() {
		c.appendLog("WebSocket not connected", entities.SeverityError)
		return domain.ErrNotConnected
	}

	ctx, cancel := context.WithCancel(c.runCtx)
	c.captureGen++
	c.captureCancel = cancel
	c.recording = true

	go c.runCapture(ctx, c.captureGen)

	cfg := c.rate.Current()
	c.appendLog(fmt.Sprintf("Started rate-limited recording: chunk=%dms, interval=%dms",
		cfg.ChunkDurationMs, cfg.CaptureIntervalMs), entities.SeveritySent)
	return nil
}

func (c *VoiceClient) stopCapture() {
	if c.captureCancel != nil {
		c.captureCancel()
		c.captureCancel = nil
	}
	c.recording = false
}

// runCapture owns the input device for one recording. Chunks are posted to
// the loop as they close; the device is released when capture ends.
func (c *VoiceClient) runCapture(ctx context.Context, gen uint64) {
	stream, err := c.source.Open(ctx)
	if err != nil {
		c.post(captureStopped{gen: gen, err: err})
		return
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			c.logger.Warn("Failed to release capture stream", zap.Error(err))
		}
	}()

	for chunk, err := range stream.Chunks(ctx) {
		if err != nil {
			c.post(captureStopped{gen: gen, err: err})
			return
		}
		c.post(captureChunk{data: chunk})
	}
	c.post(captureStopped{gen: gen})
}

// onCaptureChunk sends one slice as a binary frame, or drops it when the
// connection is not open.
func (c *VoiceClient) onCaptureChunk(data []byte) {
	if c.socket == nil || !c.machine.State().IsOpen() {
		c.logger.Debug("Dropping audio chunk, connection not open", zap.Int("size", len(data)))
		return
	}
	if err := c.socket.Send(repositories.BinaryFrame, data); err != nil {
		c.appendLog("Error sending audio chunk: "+err.Error(), entities.SeverityError)
		return
	}
	c.counters.AudioChunksSent++
	c.appendLog(fmt.Sprintf("Sending audio chunk, size: %d (rate limited)", len(data)), entities.SeverityDebug)
}

func (c *VoiceClient) onCaptureStopped(e captureStopped) {
	if e.gen != c.captureGen || !c.recording {
		return
	}
	c.stopCapture()

	switch {
	case e.err == nil:
		c.appendLog("Capture source ended", entities.SeverityDebug)
	case errors.Is(e.err, domain.ErrMediaAccessDenied):
		c.appendLog("Error accessing microphone: "+e.err.Error(), entities.SeverityError)
	default:
		c.appendLog("Capture failed: "+e.err.Error(), entities.SeverityError)
	}
}
