package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"popsim/internal/app"
	"popsim/internal/config"
	"popsim/internal/logging"
	"popsim/internal/transport/rest"
	"popsim/internal/transport/ws"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	gcInterval      = 10 * time.Minute
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "popsim-server",
	Short:        "Population simulation HTTP and WebSocket server",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configPath)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogJSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("llm gateway ready",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model))

	hub := ws.NewHub(logger)
	a.Attach(hub.Publish)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: rest.NewRouter(&rest.Container{
			ZoneService:       a.Zones,
			ClusterService:    a.Clusters,
			AgentService:      a.Agents,
			SimulationService: a.Simulations,
			PollService:       a.Polls,
			Runner:            a.Runner,
			WSHub:             hub,
			Logger:            logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(gcInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := a.Fallback.RunGC(); err != nil {
					logger.Debug("fallback gc", zap.Error(err))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
		if err := a.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	err = g.Wait()
	logger.Info("server exited")
	return err
}
