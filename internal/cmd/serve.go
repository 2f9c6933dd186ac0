package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/3leaps/slurmlongrun/internal/errors"
	"github.com/3leaps/slurmlongrun/internal/observability"
	"github.com/3leaps/slurmlongrun/internal/server"
	"github.com/3leaps/slurmlongrun/pkg/runregistry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status API",
	Long: `Serve an HTTP API exposing the run registry: run listings, individual
run state, and a health endpoint. The API is read-only; submission and
supervision stay in the CLI.

Examples:
  slurmlongrun serve
  slurmlongrun serve --port 9090`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	host := serveHost
	if host == "" {
		host = appConfig.Server.Host
	}
	port := servePort
	if port == 0 {
		port = appConfig.Server.Port
	}

	store := runregistry.NewStore(appConfig.RunsDir())
	srv := server.New(host, port, versionInfo.Version, store)
	srv.Health().RegisterChecker("run_registry", registryChecker{store: store})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observability.CLILogger.Info("Status server listening",
		zap.String("addr", srv.Addr()),
		zap.String("runs_dir", store.RootDir()))

	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return exitError(foundry.ExitExternalServiceUnavailable, "Status server failed",
			errwrap.WrapInternal(err, "status server failed"))
	}

	observability.CLILogger.Info("Status server stopped")
	return nil
}

// registryChecker verifies the run registry directory is readable.
type registryChecker struct {
	store *runregistry.Store
}

func (c registryChecker) CheckHealth(_ context.Context) error {
	if _, err := c.store.List(); err != nil {
		return fmt.Errorf("run registry unreadable: %w", err)
	}
	return nil
}
