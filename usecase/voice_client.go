package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain"
	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/capture"
	"github.com/satriahrh/arunika/voiceclient/internal/ratelimit"
	"github.com/satriahrh/arunika/voiceclient/internal/session"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
)

const (
	defaultVoice = "lily"
	defaultSpeed = 1.0
	minSpeed     = 0.5
	maxSpeed     = 2.0

	eventBufferSize      = 64
	subscriberBufferSize = 16

	exportTimeLayout = "2006-01-02T15-04-05"
)

// Dependencies are the external collaborators of the client. Transport and
// Media are required; the sinks are optional.
type Dependencies struct {
	Transport repositories.Transport
	Media     repositories.MediaCapture
	LogSink   repositories.LogSink
	Exporter  repositories.LogExporter
	AudioSink repositories.AudioSink
}

// Options are the initial client settings.
type Options struct {
	Language  string
	Voice     string
	Speed     float64
	RateLimit entities.RateLimitConfig
}

// SynthesisRequest asks the server to speak text. Zero fields fall back to
// the pending synthesis text, the configured voice and normal speed.
type SynthesisRequest struct {
	Text  string
	Voice string
	Speed float64
}

type operation struct {
	fn    func() error
	reply chan error
}

// VoiceClient is the protocol client facade. All mutable state is owned by
// the dispatch loop started with Run; transport and capture callbacks post
// events to it and operations are executed on it one at a time.
type VoiceClient struct {
	transport repositories.Transport
	sink      repositories.LogSink
	exporter  repositories.LogExporter
	audioSink repositories.AudioSink
	logger    *zap.Logger

	ops    chan operation
	events chan clientEvent
	done   chan struct{}

	// Loop-owned state below.
	runCtx    context.Context
	machine   *session.Machine
	rate      *ratelimit.Controller
	source    *capture.Source
	validator *websocket.ResponseValidator

	socket    repositories.Socket
	socketGen uint64

	recording     bool
	captureGen    uint64
	captureCancel context.CancelFunc

	voice            string
	speed            float64
	counters         entities.Counters
	flags            entities.ValidationFlags
	latestTranscript string
	synthesisText    string
	lastResponse     *entities.ResponseAnalysis
	audio            entities.AudioInfo
	audioSeq         uint64
	log              []entities.LogEntry

	subscribers map[uint64]chan entities.Snapshot
	nextSubID   uint64

	now func() time.Time
}

// NewVoiceClient creates a client. The session id is generated here so it
// exists before any socket does.
func NewVoiceClient(deps Dependencies, opts Options, logger *zap.Logger) (*VoiceClient, error) {
	if deps.Transport == nil {
		return nil, errors.New("transport is required")
	}
	if deps.Media == nil {
		return nil, errors.New("media capture is required")
	}
	if opts.RateLimit == (entities.RateLimitConfig{}) {
		opts.RateLimit = entities.DefaultRateLimitConfig()
	}
	if opts.Voice == "" {
		opts.Voice = defaultVoice
	}

	rate := ratelimit.NewController(opts.RateLimit, logger)

	return &VoiceClient{
		transport:   deps.Transport,
		sink:        deps.LogSink,
		exporter:    deps.Exporter,
		audioSink:   deps.AudioSink,
		logger:      logger,
		ops:         make(chan operation),
		events:      make(chan clientEvent, eventBufferSize),
		done:        make(chan struct{}),
		runCtx:      context.Background(),
		machine:     session.NewMachine(opts.Language),
		rate:        rate,
		source:      capture.NewSource(deps.Media, rate, logger),
		validator:   websocket.NewResponseValidator(),
		voice:       opts.Voice,
		speed:       normalizeSpeed(opts.Speed),
		subscribers: make(map[uint64]chan entities.Snapshot),
		now:         time.Now,
	}, nil
}

// Run executes the dispatch loop until ctx is cancelled. Operations called
// before Run starts wait for it; operations called after it returns fail
// with domain.ErrClientClosed.
func (c *VoiceClient) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)
	defer c.shutdown()

	c.logger.Info("Voice client started", zap.String("sessionID", c.machine.Session().ID))

	for {
		select {
		case op := <-c.ops:
			// Events already delivered are handled first so an operation
			// always observes every callback that happened before it.
			c.drainEvents()
			op.reply <- op.fn()
			c.publish()

		case ev := <-c.events:
			c.handleEvent(ev)
			c.publish()

		case <-ctx.Done():
			c.logger.Info("Voice client stopping")
			return nil
		}
	}
}

func (c *VoiceClient) drainEvents() {
	for {
		select {
		case ev := <-c.events:
			c.handleEvent(ev)
		default:
			return
		}
	}
}

func (c *VoiceClient) shutdown() {
	c.stopCapture()
	if c.socket != nil {
		c.socket.Close()
		c.socket = nil
	}
	for id, ch := range c.subscribers {
		delete(c.subscribers, id)
		close(ch)
	}
}

// do runs fn on the dispatch loop and waits for its result.
func (c *VoiceClient) do(ctx context.Context, fn func() error) error {
	op := operation{fn: fn, reply: make(chan error, 1)}

	select {
	case c.ops <- op:
	case <-c.done:
		return domain.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-op.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands an event to the dispatch loop. Events posted after the loop
// has stopped are discarded.
func (c *VoiceClient) post(ev clientEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Connect opens a socket to rawURL with the language query parameter set.
// It is a no-op while a socket already exists.
func (c *VoiceClient) Connect(ctx context.Context, rawURL, language string) error {
	return c.do(ctx, func() error {
		if c.socket != nil {
			c.logger.Debug("Connect ignored, socket already exists",
				zap.String("state", c.machine.State().String()))
			return nil
		}

		c.machine.SetLanguage(strings.TrimSpace(language))
		endpoint, err := buildEndpoint(rawURL, c.machine.Session().Language)
		if err != nil {
			c.appendLog("Failed to connect: "+err.Error(), entities.SeverityError)
			return err
		}

		if err := c.machine.BeginConnect(); err != nil {
			return err
		}

		c.socketGen++
		c.appendLog("Connecting to: "+endpoint, entities.SeverityDebug)

		socket, err := c.transport.Open(c.runCtx, endpoint, &socketHandler{client: c, gen: c.socketGen})
		if err != nil {
			c.machine.Failed()
			err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
			c.appendLog("Failed to connect: "+err.Error(), entities.SeverityError)
			return err
		}
		c.socket = socket
		return nil
	})
}

func buildEndpoint(rawURL, language string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", domain.ErrInvalidURL, rawURL)
	}
	q := u.Query()
	q.Set("language", language)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Disconnect closes the socket immediately. Calling it without a socket is
// a no-op.
func (c *VoiceClient) Disconnect(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.socket == nil {
			return nil
		}
		c.socket.Close()
		c.socket = nil
		// Callbacks from the closed socket are stale from here on.
		c.socketGen++
		c.machine.Closed()
		c.flags.Connection = false
		c.appendLog("Disconnected from WebSocket server", entities.SeverityDebug)
		return nil
	})
}

// StartSession announces the session to the server with exactly one start
// message. It fails with domain.ErrNotConnected unless the socket is open.
func (c *VoiceClient) StartSession(ctx context.Context) error {
	return c.do(ctx, func() error {
		if c.socket == nil || !c.machine.State().IsOpen() {
			c.appendLog("WebSocket not connected", entities.SeverityError)
			return domain.ErrNotConnected
		}

		id, err := c.machine.StartSession()
		if err != nil {
			c.appendLog(err.Error(), entities.SeverityError)
			return err
		}
		c.counters.ResponseCount = 0
		c.flags.SessionID = true

		message := websocket.CreateStartMessage(id, c.machine.Session().Language)
		payload, err := c.sendControl(message)
		if err != nil {
			return err
		}
		c.appendLog("Sent start event: "+string(payload), entities.SeveritySent)
		return nil
	})
}

// SetSessionID overwrites the session id used by the next start message.
func (c *VoiceClient) SetSessionID(ctx context.Context, id string) error {
	return c.do(ctx, func() error {
		c.machine.SetSessionID(id)
		c.appendLog("Session id set to: "+c.machine.Session().ID, entities.SeverityDebug)
		return nil
	})
}

// Synthesize sends one synthesize message. Empty text falls back to the
// pending synthesis text, which the latest transcript replaces.
func (c *VoiceClient) Synthesize(ctx context.Context, req SynthesisRequest) error {
	return c.do(ctx, func() error {
		if c.socket == nil || !c.machine.State().IsOpen() {
			c.appendLog("WebSocket not connected", entities.SeverityError)
			return domain.ErrNotConnected
		}

		text := strings.TrimSpace(req.Text)
		if text == "" {
			text = strings.TrimSpace(c.synthesisText)
		}
		if text == "" {
			c.appendLog("Please enter text to synthesize", entities.SeverityError)
			return domain.ErrEmptyText
		}
		c.synthesisText = text

		voice := strings.TrimSpace(req.Voice)
		if voice == "" {
			voice = c.voice
		}
		speed := c.speed
		if req.Speed != 0 {
			speed = normalizeSpeed(req.Speed)
		}

		message := websocket.CreateSynthesizeMessage(text, voice, c.machine.Session().Language, speed)
		payload, err := c.sendControl(message)
		if err != nil {
			c.appendLog("Failed to send synthesis request", entities.SeverityError)
			return err
		}
		c.appendLog("Sent synthesis request: "+string(payload), entities.SeveritySent)
		return nil
	})
}

func normalizeSpeed(speed float64) float64 {
	if speed == 0 {
		return defaultSpeed
	}
	return min(max(speed, minSpeed), maxSpeed)
}

// sendControl encodes and sends a control message as a text frame.
func (c *VoiceClient) sendControl(message interface{}) ([]byte, error) {
	if c.socket == nil || !c.machine.State().IsOpen() {
		c.appendLog("Cannot send message - WebSocket not connected", entities.SeverityError)
		return nil, domain.ErrNotConnected
	}

	payload, err := websocket.EncodeControl(message)
	if err != nil {
		c.appendLog("Error sending message: "+err.Error(), entities.SeverityError)
		return nil, err
	}

	c.appendLog("SENDING: "+string(payload), entities.SeverityDebug)
	if err := c.socket.Send(repositories.TextFrame, payload); err != nil {
		c.appendLog("Error sending message: "+err.Error(), entities.SeverityError)
		return nil, err
	}
	c.counters.MessagesSent++
	return payload, nil
}

// SetRateLimit replaces the timing parameters. It is the only way to lower
// them; values are clamped into bounds.
func (c *VoiceClient) SetRateLimit(ctx context.Context, cfg entities.RateLimitConfig) (entities.RateLimitConfig, error) {
	var applied entities.RateLimitConfig
	err := c.do(ctx, func() error {
		applied = c.rate.Reset(cfg)
		c.appendLog("Rate limiting set: "+applied.String(), entities.SeverityDebug)
		return nil
	})
	return applied, err
}

// ClearLog empties the message log and resets the message counters.
func (c *VoiceClient) ClearLog(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.log = nil
		c.counters.MessagesSent = 0
		c.counters.MessagesReceived = 0
		c.counters.AudioChunksSent = 0
		return nil
	})
}

// Log returns a copy of the message log.
func (c *VoiceClient) Log(ctx context.Context) ([]entities.LogEntry, error) {
	var entries []entities.LogEntry
	err := c.do(ctx, func() error {
		entries = append([]entities.LogEntry(nil), c.log...)
		return nil
	})
	return entries, err
}

// ExportLog hands the rendered log to the exporter and returns the file name.
// The export itself runs on the caller's goroutine.
func (c *VoiceClient) ExportLog(ctx context.Context) (string, error) {
	if c.exporter == nil {
		return "", errors.New("no log exporter configured")
	}

	var filename, content string
	err := c.do(ctx, func() error {
		lines := make([]string, 0, len(c.log))
		for _, entry := range c.log {
			lines = append(lines, entry.Line())
		}
		content = strings.Join(lines, "\n")
		filename = "voice-test-log-" + c.now().UTC().Format(exportTimeLayout) + ".txt"
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := c.exporter.Export(ctx, filename, content); err != nil {
		c.logger.Error("Failed to export log", zap.String("filename", filename), zap.Error(err))
		return "", fmt.Errorf("export log: %w", err)
	}
	return filename, nil
}

// ClearAudio forgets the last decoded audio.
func (c *VoiceClient) ClearAudio(ctx context.Context) error {
	return c.do(ctx, func() error {
		c.audio = entities.AudioInfo{}
		return nil
	})
}

// Snapshot returns a copy of the full client state.
func (c *VoiceClient) Snapshot(ctx context.Context) (entities.Snapshot, error) {
	var snapshot entities.Snapshot
	err := c.do(ctx, func() error {
		snapshot = c.snapshot()
		return nil
	})
	return snapshot, err
}

// Subscribe registers an observer that receives a snapshot after every
// processed event or operation. Slow observers miss updates. The channel is
// closed by cancel or when the client stops.
func (c *VoiceClient) Subscribe(ctx context.Context) (<-chan entities.Snapshot, func(), error) {
	ch := make(chan entities.Snapshot, subscriberBufferSize)
	var id uint64
	err := c.do(ctx, func() error {
		c.nextSubID++
		id = c.nextSubID
		c.subscribers[id] = ch
		ch <- c.snapshot()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	cancel := func() {
		_ = c.do(context.Background(), func() error {
			if sub, ok := c.subscribers[id]; ok {
				delete(c.subscribers, id)
				close(sub)
			}
			return nil
		})
	}
	return ch, cancel, nil
}

func (c *VoiceClient) snapshot() entities.Snapshot {
	s := entities.Snapshot{
		Connection:       c.machine.State().String(),
		Session:          c.machine.Session(),
		Recording:        c.recording,
		RateLimit:        c.rate.Current(),
		Counters:         c.counters,
		LatestTranscript: c.latestTranscript,
		SynthesisText:    c.synthesisText,
		Validation:       c.flags,
		Audio:            c.audio,
		LogSize:          len(c.log),
	}
	if c.lastResponse != nil {
		analysis := *c.lastResponse
		s.LastResponse = &analysis
	}
	return s
}

func (c *VoiceClient) publish() {
	if len(c.subscribers) == 0 {
		return
	}
	snapshot := c.snapshot()
	for _, ch := range c.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// appendLog records a protocol log entry and forwards it to the sink.
func (c *VoiceClient) appendLog(message string, severity entities.Severity) {
	entry := entities.LogEntry{
		Timestamp: c.now(),
		Message:   message,
		Severity:  severity,
	}
	c.log = append(c.log, entry)
	if c.sink != nil {
		c.sink.Log(entry)
	}
}
