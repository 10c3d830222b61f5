package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/memorylane/internal/auth"
	"github.com/abduss/memorylane/internal/config"
	"github.com/abduss/memorylane/internal/metrics"
	"github.com/abduss/memorylane/internal/server"
	"github.com/abduss/memorylane/internal/storage"
	"github.com/abduss/memorylane/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveStore string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MemoryLane API server",
	Long: `Starts the HTTP API. Usage:

	memorylane serve
	memorylane serve --store memory
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		if serveStore != "" {
			cfg.Store = serveStore
		}
		return runServer(cmd.Context(), cfg, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveStore, "store", "", "user store backend (postgres or memory); overrides MEMORYLANE_STORE")
}

func runServer(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}
	metrics.InitMetrics()

	deps := server.Dependencies{Config: cfg, Logger: log}
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := storage.NewPostgresPool(ctx, cfg.Postgres, log)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		if err := storage.Migrate(ctx, pool); err != nil {
			return err
		}
		deps.DB = pool
		deps.AuthService = auth.NewService(user.NewRepository(pool), cfg.Auth, log)
	case config.StoreMemory:
		log.Warn("using in-memory user store; accounts are lost on restart")
		deps.AuthService = auth.NewService(user.NewMemoryRepository(), cfg.Auth, log)
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      server.NewHandler(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("MemoryLane API listening", zap.String("addr", cfg.Server.Address()), zap.String("store", cfg.Store))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
