package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/internal/api"
	"github.com/satriahrh/arunika/voiceclient/internal/config"
	"github.com/satriahrh/arunika/voiceclient/internal/websocket"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control API",
		Long: `Run the HTTP control API and the snapshot stream.

The voice client is idle until POST /api/v1/connect is called. Snapshots of
the client state are pushed to every websocket observer on /ws/state.`,
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
			if port != "" {
				cfg.Port = port
			}
			return serve(cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides PORT)")
	return cmd
}

func serve(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	built, err := buildClient(ctx, cfg, cfg.CaptureFile, true, logger)
	if err != nil {
		return err
	}
	defer built.cleanup()
	client := built.client

	runCtx, stopRun := context.WithCancel(ctx)
	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(runCtx) }()
	defer func() {
		stopRun()
		<-runDone
	}()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	updates, unsubscribe, err := client.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer unsubscribe()
	go func() {
		for snapshot := range updates {
			hub.Broadcast(snapshot)
		}
	}()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, client, built.history, hub, api.Defaults{URL: cfg.ServerURL, Language: cfg.Language}, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Control API started", zap.String("port", cfg.Port))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}
