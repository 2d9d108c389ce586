package controlgraph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/controlgraph"
	"github.com/soundprediction/controlgraph/pkg/config"
	"github.com/soundprediction/controlgraph/pkg/server"
)

var (
	serverHost string
	serverPort int
	serverMode string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the controlgraph HTTP server",
		Long: `Start the HTTP server providing REST API access to the engine.

The server provides endpoints for:
- Hybrid retrieval queries
- Agent workflow execution
- Knowledge graph statistics and entity lookup
- Health checks`,
		RunE: runServe,
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "Server host")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "Server port")
	serveCmd.Flags().StringVar(&serverMode, "mode", "", "Server mode (debug, release, test)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if serverMode != "" {
		cfg.Server.Mode = serverMode
	}

	logger := cfg.NewLogger(os.Stderr)

	client, err := controlgraph.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	srv := server.New(cfg, client)
	srv.Setup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "host", cfg.Server.Host, "port", cfg.Server.Port)
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
