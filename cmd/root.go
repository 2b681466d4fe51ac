package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/adapters/exporter"
	"github.com/satriahrh/arunika/voiceclient/adapters/logsink"
	"github.com/satriahrh/arunika/voiceclient/adapters/media"
	"github.com/satriahrh/arunika/voiceclient/adapters/mongo"
	"github.com/satriahrh/arunika/voiceclient/adapters/playback"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
	"github.com/satriahrh/arunika/voiceclient/internal/auth"
	"github.com/satriahrh/arunika/voiceclient/internal/config"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
	"github.com/satriahrh/arunika/voiceclient/usecase"
)

type rootOptions struct {
	envFile string
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "voiceclient",
		Short:         "Streaming voice protocol client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "development logging at debug level")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newStreamCmd(opts))
	return cmd
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	if o.verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func (o *rootOptions) config() (config.Config, error) {
	cfg := config.Load(o.envFile)
	return cfg, cfg.Validate()
}

// components is the wired facade plus the optional export archive.
type components struct {
	client  *usecase.VoiceClient
	history repositories.LogHistory
	cleanup func()
}

// buildClient wires the facade to its production collaborators. cleanup
// releases the collaborators and must be called once the client has stopped.
func buildClient(ctx context.Context, cfg config.Config, captureFile string, realtime bool, logger *zap.Logger) (*components, error) {
	var header http.Header
	if cfg.AuthEnabled() {
		h, err := auth.HandshakeHeader([]byte(cfg.AuthSecret), cfg.DeviceID)
		if err != nil {
			return nil, fmt.Errorf("failed to mint handshake token: %w", err)
		}
		header = h
	}

	exporters := exporter.Multi{exporter.NewFileExporter(cfg.LogExportDir, logger)}
	c := &components{cleanup: func() {}}
	if cfg.MongoURI != "" {
		db, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, err
		}
		archive := mongo.NewLogArchive(db.Database, cfg.DeviceID, logger)
		exporters = append(exporters, archive)
		c.history = archive
		c.cleanup = func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = db.Close(closeCtx)
		}
	}

	client, err := usecase.NewVoiceClient(usecase.Dependencies{
		Transport: websocket.NewTransport(header, logger),
		Media:     media.NewFileCapture(captureFile, realtime, logger),
		LogSink:   logsink.NewZapSink(logger),
		Exporter:  exporters,
		AudioSink: playback.NewWAVFileSink(cfg.AudioOutputDir, logger),
	}, usecase.Options{
		Language:  cfg.Language,
		Voice:     cfg.Voice,
		Speed:     cfg.Speed,
		RateLimit: cfg.RateLimit,
	}, logger)
	if err != nil {
		c.cleanup()
		return nil, err
	}
	c.client = client
	return c, nil
}
