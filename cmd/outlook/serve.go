package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/solar-outlook-service/internal/adapter/http"
	"github.com/couchcryptid/solar-outlook-service/internal/scheduler"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily refresh and model schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func serve(ctx context.Context) error {
	a, err := newApp(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.Error("close resources", "error", err)
		}
	}()

	modelSpec := ""
	if a.cfg.ModelEnabled() {
		modelSpec = a.cfg.ModelSchedule
	}
	sched, err := scheduler.New(a.engine, a.logger, scheduler.Options{
		RefreshSpec:     a.cfg.RefreshSchedule,
		RefreshTimezone: a.cfg.RefreshTimezone,
		ModelSpec:       modelSpec,
		ModelTimezone:   a.cfg.ModelTimezone,
		MaxAttempts:     3,
		InitialBackoff:  30 * time.Second,
		MaxBackoff:      5 * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("configure scheduler: %w", err)
	}

	srv := httpadapter.NewServer(a.cfg.HTTPAddr, a.engine, a.logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if a.cfg.SchedulerEnabled {
		g.Go(func() error { return sched.Run(gctx) })
	} else {
		a.logger.Info("in-process scheduler disabled")
	}

	if !a.cfg.SkipStartupRun {
		g.Go(func() error {
			sched.RunStartup(gctx)
			return nil
		})
	}

	err = g.Wait()
	a.logger.Info("shutdown complete")
	return err
}
