package usecase

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
)

// clientEvent is anything posted to the dispatch loop from another goroutine.
type clientEvent interface{}

type socketOpened struct{ gen uint64 }

type socketMessage struct {
	gen       uint64
	frameType repositories.FrameType
	payload   []byte
}

type socketClosed struct {
	gen    uint64
	code   int
	reason string
}

type socketFailed struct {
	gen uint64
	err error
}

// socketHandler tags transport callbacks with the generation of the socket
// they belong to, so callbacks from a replaced socket are ignored.
type socketHandler struct {
	client *VoiceClient
	gen    uint64
}

func (h *socketHandler) OnOpen() {
	h.client.post(socketOpened{gen: h.gen})
}

func (h *socketHandler) OnMessage(frameType repositories.FrameType, payload []byte) {
	h.client.post(socketMessage{gen: h.gen, frameType: frameType, payload: payload})
}

func (h *socketHandler) OnClose(code int, reason string) {
	h.client.post(socketClosed{gen: h.gen, code: code, reason: reason})
}

func (h *socketHandler) OnError(err error) {
	h.client.post(socketFailed{gen: h.gen, err: err})
}

func (c *VoiceClient) handleEvent(ev clientEvent) {
	switch e := ev.(type) {
	case socketOpened:
		if c.isCurrentSocket(e.gen) {
			c.onSocketOpened()
		}
	case socketMessage:
		if c.isCurrentSocket(e.gen) {
			c.onSocketMessage(e.frameType, e.payload)
		}
	case socketClosed:
		if c.isCurrentSocket(e.gen) {
			c.onSocketClosed(e.code, e.reason)
		}
	case socketFailed:
		if c.isCurrentSocket(e.gen) {
			c.onSocketFailed(e.err)
		}
	case captureChunk:
		c.onCaptureChunk(e.data)
	case captureStopped:
		c.onCaptureStopped(e)
	case audioStored:
		c.onAudioStored(e)
	default:
		c.logger.Warn("Unhandled client event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (c *VoiceClient) isCurrentSocket(gen uint64) bool {
	return c.socket != nil && gen == c.socketGen
}

func (c *VoiceClient) onSocketOpened() {
	if err := c.machine.Opened(); err != nil {
		c.logger.Warn("Unexpected open event", zap.Error(err))
		return
	}
	c.flags.Connection = true
	c.appendLog("Connected to WebSocket server", entities.SeverityReceived)
}

func (c *VoiceClient) onSocketClosed(code int, reason string) {
	c.socket = nil
	c.machine.Closed()
	c.flags.Connection = false
	c.appendLog(fmt.Sprintf("WebSocket connection closed. Code: %d, Reason: %s", code, reason), entities.SeverityError)
}

// onSocketFailed releases the handle and leaves the machine in Error. There
// is no automatic retry.
func (c *VoiceClient) onSocketFailed(err error) {
	c.socket = nil
	c.machine.Failed()
	c.flags.Connection = false
	c.appendLog("WebSocket error: "+err.Error(), entities.SeverityError)
}

func (c *VoiceClient) onSocketMessage(frameType repositories.FrameType, payload []byte) {
	c.counters.MessagesReceived++
	if frameType == repositories.BinaryFrame {
		c.appendLog(fmt.Sprintf("RAW RECEIVED: %s frame, %d bytes", frameType.String(), len(payload)), entities.SeverityDebug)
	} else {
		c.appendLog("RAW RECEIVED: "+string(payload), entities.SeverityDebug)
	}

	event, err := websocket.Classify(payload)
	if err != nil {
		c.appendLog("Error parsing message: "+err.Error(), entities.SeverityError)
		c.appendLog("Raw message: "+string(payload), entities.SeverityError)
		return
	}

	c.appendLog("PARSED: "+event.Kind().String(), entities.SeverityReceived)

	switch e := event.(type) {
	case *websocket.ConnectedEvent:
		if e.HasRateLimiting() {
			c.flags.RateLimiting = true
			c.appendLog("Server rate limiting config: "+string(e.RateLimiting), entities.SeverityReceived)
			return
		}
		c.appendLog("Server confirmed connection with services: "+strings.Join(e.Services, ", "), entities.SeverityReceived)

	case *websocket.AudioChunkEvent:
		c.onAudioChunk(e)

	case *websocket.TranscriptEvent:
		c.latestTranscript = e.Text
		c.synthesisText = e.Text
		c.flags.Transcription = true
		c.appendLog("Transcript: "+e.Text, entities.SeverityTranscript)

	case *websocket.ErrorEvent:
		if e.RateLimited {
			c.onRateLimited(e.Message)
			return
		}
		c.appendLog("Server error: "+e.Message, entities.SeverityError)

	case *websocket.SessionStartedEvent:
		c.appendLog("Session started: "+e.SessionID, entities.SeverityReceived)

	case *websocket.SynthesisStartedEvent:
		c.appendLog("Synthesis started for: "+e.Text, entities.SeverityReceived)

	case *websocket.UnknownEvent:
		c.logger.Debug("Ignoring unknown message type", zap.String("type", e.Type))
	}
}

func (c *VoiceClient) onRateLimited(message string) {
	c.appendLog("Rate limit error detected: "+message, entities.SeverityError)
	c.logger.Warn("Server signalled rate limiting", zap.Error(domain.ErrRateLimited), zap.String("message", message))

	cfg, changed := c.rate.Backoff()
	if !changed {
		c.appendLog("Rate limiting already at ceiling: "+cfg.String(), entities.SeverityDebug)
		return
	}
	c.appendLog("Auto-adjusted rate limiting: "+cfg.String(), entities.SeverityDebug)
}

func (c *VoiceClient) onAudioChunk(e *websocket.AudioChunkEvent) {
	c.counters.ResponseCount++

	result := c.validator.Validate(e.Payload)
	compliance := c.validator.CheckFormat(e.Payload)
	hasAudio := c.validator.HasBase64Audio(e.Payload)

	c.flags.SynthesisFormat = result.IsValid
	c.flags.AudioFormat = compliance.Compliant()
	c.flags.Base64Encoding = hasAudio

	current := c.machine.Session().ID
	c.lastResponse = &entities.ResponseAnalysis{
		ResponseNumber: c.counters.ResponseCount,
		Validation:     result,
		Format:         compliance,
		SessionID:      e.SessionID,
		SessionMatches: e.SessionID == current,
		Count:          e.Sequence,
		SampleRate:     e.SampleRate,
		Channels:       e.Channels,
		SampleWidth:    e.SampleWidth,
		Base64Length:   len(e.AudioBase64),
	}

	c.appendLog(fmt.Sprintf("Audio response #%d: session=%s count=%d valid=%t compliant=%t missing=%v",
		c.counters.ResponseCount, e.SessionID, e.Sequence, result.IsValid, compliance.Compliant(), result.MissingFields),
		entities.SeverityReceived)

	audio, err := websocket.DecodeAudio(e.AudioBase64)
	if err != nil {
		c.appendLog("Error creating audio from base64: "+err.Error(), entities.SeverityError)
		return
	}

	c.audioSeq++
	c.audio = entities.AudioInfo{Loaded: true, Bytes: len(audio)}
	c.appendLog(fmt.Sprintf("Audio loaded: %.2f KB - Format: WAV (Base64 decoded)", float64(len(audio))/1024),
		entities.SeverityReceived)

	if c.audioSink == nil {
		return
	}

	format := repositories.AudioFormat{
		SampleRate:  orDefault(e.SampleRate, domain.RequiredSampleRate),
		Channels:    orDefault(e.Channels, domain.RequiredChannels),
		SampleWidth: orDefault(e.SampleWidth, domain.RequiredSampleWidth),
	}
	seq, ctx, sink := c.audioSeq, c.runCtx, c.audioSink
	go func() {
		path, err := sink.Play(ctx, audio, format)
		c.post(audioStored{seq: seq, path: path, err: err})
	}()
}

type audioStored struct {
	seq  uint64
	path string
	err  error
}

func (c *VoiceClient) onAudioStored(e audioStored) {
	if e.err != nil {
		c.appendLog("Error playing audio: "+e.err.Error(), entities.SeverityError)
		return
	}
	// A newer response or a clear replaced the audio in the meantime.
	if e.seq != c.audioSeq || !c.audio.Loaded {
		return
	}
	c.audio.Path = e.path
	c.appendLog("Audio loaded successfully, ready to play", entities.SeverityReceived)
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
