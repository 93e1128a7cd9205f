package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"time"

	kmsapi "cloud.google.com/go/kms/apiv1"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/meridianmesh/edge-gateway/internal/config"
	"github.com/meridianmesh/edge-gateway/internal/service"
)

// shutdownGrace bounds how long serve waits for outstanding requests to
// drain and for the audit WAL to flush before exiting.
const shutdownGrace = 20 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start EdgeGateway and the internal control-plane listener",
	Long: `serve loads configuration, dials KMS, wires every adapter through the
composition root, and starts two independent HTTP listeners: EdgeGateway
(external traffic) and the internal control-plane listener (JWKS
publication, S2S-gated svcconfig/call passthrough, health).

On SIGINT/SIGTERM it stops accepting new connections on both listeners,
drains outstanding requests up to a grace deadline, flushes the audit WAL,
and exits.`,
	RunE: runServe,
}

var devMode bool

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (debug logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		// ConfigError: missing/invalid env fails at boot.
		return fmt.Errorf("load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}

	logger := service.NewLogger(cfg)
	if file := config.ConfigFileUsed(); file != "" {
		logger.Info("loaded config", "file", file)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	defer stop()

	var kmsOpts []option.ClientOption
	if cfg.KMS.Endpoint != "" {
		kmsOpts = append(kmsOpts, option.WithEndpoint(cfg.KMS.Endpoint))
	}
	kmsClient, err := kmsapi.NewKeyManagementClient(ctx, kmsOpts...)
	if err != nil {
		// KMS initialization failure is a non-zero exit.
		return fmt.Errorf("dial KMS: %w", err)
	}
	defer kmsClient.Close()

	rt, err := service.Build(ctx, cfg, kmsClient, logger)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}
	rt.RunBackground(ctx)

	edgeServer := &http.Server{Addr: cfg.Server.HTTPAddr, Handler: rt.EdgeHandler}
	internalServer := &http.Server{Addr: cfg.Internal.HTTPAddr, Handler: rt.InternalHandler}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("starting EdgeGateway listener", "addr", cfg.Server.HTTPAddr)
		if err := edgeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("edge listener: %w", err)
		}
	}()
	go func() {
		logger.Info("starting internal control-plane listener", "addr", cfg.Internal.HTTPAddr)
		if err := internalServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("internal listener: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received, draining")
	case err := <-errCh:
		logger.Error("listener failed, shutting down", "error", err)
		shutdown(logger, rt, edgeServer, internalServer)
		return err
	}

	shutdown(logger, rt, edgeServer, internalServer)
	logger.Info("edge-gateway stopped")
	return nil
}

// shutdown stops accepting new connections on both listeners, drains
// outstanding requests up to shutdownGrace, then fsyncs and closes the
// audit WAL. No final batch is sent on shutdown; events still past the
// cursor are sent by the startup replay of the next run.
func shutdown(logger *slog.Logger, rt *service.Runtime, edgeServer, internalServer *http.Server) {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := edgeServer.Shutdown(drainCtx); err != nil {
		logger.Warn("edge listener did not drain cleanly", "error", err)
	}
	if err := internalServer.Shutdown(drainCtx); err != nil {
		logger.Warn("internal listener did not drain cleanly", "error", err)
	}

	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer flushCancel()
	if err := rt.Shutdown(flushCtx); err != nil {
		logger.Warn("audit WAL shutdown failed", "error", err)
	}
}
