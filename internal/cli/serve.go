// ABOUTME: Serve command starting the REST server
// ABOUTME: Wires the shared engine into internal/server and shuts down gracefully on signal

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ritualflow/engine/internal/server"
)

var (
	serverAddr string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST server",
	Long: `Start the HTTP REST server exposing workflow execution, version
history, and long-poll execution trace endpoints under /api/v1/.

Examples:
  ritual serve --addr :8080
  ritual serve --addr 0.0.0.0:9000 --workflows-dir s3://workflows/prod`,
	RunE: startServer,
}

func startServer(cmd *cobra.Command, args []string) error {
	logger := GetLogger()

	e, err := buildEngine()
	if err != nil {
		return err
	}
	defer e.stopMetrics()

	srv := server.New(server.Config{
		Addr:              serverAddr,
		Orchestrator:      e.orchestrator,
		Provider:          e.provider,
		ExecutionRepo:     e.store,
		TaskExecutionRepo: e.store,
		VersionRepo:       e.store,
		TaskDefs:          e.taskDefs,
		Publisher:         e.publisher,
		Metrics:           e.metrics,
		Logger:            logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("Starting HTTP server")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "addr", ":8080", "HTTP server listen address")
}
