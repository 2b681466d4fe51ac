package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

type streamOptions struct {
	url      string
	language string
	file     string
	text     string
	duration time.Duration
	settle   time.Duration
}

func newStreamCmd(root *rootOptions) *cobra.Command {
	opts := &streamOptions{}

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Stream an audio file to the voice server",
		Long: `Connect to the voice server, start a session and stream an audio file
through the rate-limited capture path.

The file may be a WAV file or raw 16 kHz mono PCM. When --text is set a
synthesis request is sent once the file has been streamed. The message log
is exported to VOICE_LOG_EXPORT_DIR before disconnecting.

Examples:
  voiceclient stream --file hello.wav
  voiceclient stream --url ws://localhost:8080/ws --language en-US --text "Hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := root.logger()
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := root.config()
			if err != nil {
				return err
			}
			if opts.url == "" {
				opts.url = cfg.ServerURL
			}
			if opts.language == "" {
				opts.language = cfg.Language
			}
			if opts.file == "" {
				opts.file = cfg.CaptureFile
			}
			if opts.file == "" && opts.text == "" {
				return errors.New("nothing to send: set --file or --text")
			}

			built, err := buildClient(cmd.Context(), cfg, opts.file, true, logger)
			if err != nil {
				return err
			}
			defer built.cleanup()
			return stream(cmd.Context(), built.client, opts, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.url, "url", "u", "", "voice server websocket URL (overrides VOICE_WS_URL)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "language code (overrides VOICE_LANGUAGE)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "audio file to stream (overrides VOICE_CAPTURE_FILE)")
	cmd.Flags().StringVarP(&opts.text, "text", "t", "", "text to synthesize after streaming")
	cmd.Flags().DurationVar(&opts.duration, "duration", 2*time.Minute, "upper bound for the whole run")
	cmd.Flags().DurationVar(&opts.settle, "settle", 3*time.Second, "time to wait for responses after the last send")
	return cmd
}

func stream(parent context.Context, client *usecase.VoiceClient, opts *streamOptions, logger *zap.Logger) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()

	runCtx, stopRun := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(runCtx) }()
	defer func() {
		stopRun()
		<-runDone
	}()

	updates, unsubscribe, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer unsubscribe()

	if err := client.Connect(ctx, opts.url, opts.language); err != nil {
		return err
	}
	state, err := waitFor(ctx, updates, func(s entities.Snapshot) bool {
		return s.Connection != "connecting" && s.Connection != "disconnected"
	})
	if err != nil {
		return fmt.Errorf("waiting for connection: %w", err)
	}
	if state.Connection == "error" {
		return errors.New("connection to voice server failed")
	}

	if err := client.StartSession(ctx); err != nil {
		return err
	}

	if opts.file != "" {
		if err := client.StartRecording(ctx); err != nil {
			return err
		}
		if err := waitRecordingDone(ctx, client); err != nil {
			logger.Warn("Streaming interrupted", zap.Error(err))
			_ = client.StopRecording(context.Background())
		}
	}

	if opts.text != "" && ctx.Err() == nil {
		if err := client.Synthesize(ctx, usecase.SynthesisRequest{Text: opts.text}); err != nil {
			logger.Error("Synthesis request failed", zap.Error(err))
		}
	}

	if ctx.Err() == nil {
		select {
		case <-time.After(opts.settle):
		case <-ctx.Done():
		}
	}

	// The run context may be spent; finish with a fresh one.
	finishCtx, finishCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer finishCancel()

	if name, err := client.ExportLog(finishCtx); err != nil {
		logger.Error("Failed to export log", zap.Error(err))
	} else {
		logger.Info("Exported message log", zap.String("file", name))
	}

	if snapshot, err := client.Snapshot(finishCtx); err == nil {
		logger.Info("Stream finished",
			zap.Int("audio_chunks_sent", snapshot.Counters.AudioChunksSent),
			zap.Int("messages_received", snapshot.Counters.MessagesReceived),
			zap.Int("responses", snapshot.Counters.ResponseCount),
			zap.String("transcript", snapshot.LatestTranscript),
		)
	}

	return client.Disconnect(finishCtx)
}

// waitFor consumes snapshots until done reports true.
func waitFor(ctx context.Context, updates <-chan entities.Snapshot, done func(entities.Snapshot) bool) (entities.Snapshot, error) {
	for {
		select {
		case s, ok := <-updates:
			if !ok {
				return entities.Snapshot{}, errors.New("snapshot stream closed")
			}
			if done(s) {
				return s, nil
			}
		case <-ctx.Done():
			return entities.Snapshot{}, ctx.Err()
		}
	}
}

// waitRecordingDone polls the live state until the capture source ends.
func waitRecordingDone(ctx context.Context, client *usecase.VoiceClient) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s, err := client.Snapshot(ctx)
			if err != nil {
				return err
			}
			if !s.Recording {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
