package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/dashboard"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/domain/registration"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/extraction"
	v1 "github.com/dmehra2102/prod-golang-projects/rxintake/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/service"
	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/session"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/rxintake/pkg/tracer"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rxintake",
		Short: "Patient registration and prescription intake API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(stubExtractorCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the intake API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log, cfg.App)
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := func(context.Context) error { return nil }
	if cfg.Tracing.Enabled {
		tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
		if err != nil {
			return fmt.Errorf("starting tracer: %w", err)
		}
		shutdownTracer = tp.Shutdown
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewCollector(cfg.App.Name)
	sessions := session.NewManager(cfg.Session, m, log)

	sinks := []service.HandoffSink{service.NewLogSink(log)}
	var kafkaSink *service.KafkaSink
	if len(cfg.Handoff.KafkaBrokers) > 0 {
		kafkaSink = service.NewKafkaSink(cfg.Handoff.KafkaBrokers, cfg.Handoff.KafkaTopic)
		sinks = append(sinks, kafkaSink)
	}
	dispatcher := service.NewHandoffDispatcher(cfg.Handoff.BufferSize, m, log, sinks...)

	extractor := extraction.NewClient(cfg.Extraction, m, log)

	router := v1.NewRouter(v1.Deps{
		Config:   cfg,
		Sessions: sessions,
		Tokens:   auth.NewTokenManager(cfg.Session),
		Intake:   service.NewIntakeService(sessions, dispatcher, cfg.Intake, m, log),
		Dashboard: service.NewDashboardService(
			sessions,
			extractor,
			dashboard.StubTranscriber{},
			dashboard.NewStubReminderCreator(len(dashboard.DefaultReminders())+1),
			m,
			log,
		),
		Metrics:         m,
		Log:             log,
		ExtractionState: func() string { return extractor.State().String() },
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("extraction", cfg.Extraction.BaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return sessions.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown", zap.Error(err))
		}
		// Sessions are closed by Run; pending redirects never fire.
		dispatcher.Shutdown(shutdownCtx)
		if kafkaSink != nil {
			if err := kafkaSink.Close(); err != nil {
				log.Error("closing kafka writer", zap.Error(err))
			}
		}
		if err := shutdownTracer(shutdownCtx); err != nil {
			log.Error("tracer shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited with error", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <profile.json>",
		Short: "Validate a registration profile file and print its field errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			p := registration.NewProfile()
			if err := json.NewDecoder(f).Decode(&p); err != nil {
				return fmt.Errorf("decoding %s: %w", args[0], err)
			}

			errs := registration.Validate(p)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(errs); err != nil {
				return err
			}
			if len(errs) > 0 {
				cmd.SilenceUsage = true
				return fmt.Errorf("%d invalid field(s)", len(errs))
			}
			return nil
		},
	}
}

func stubExtractorCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "stub-extractor",
		Short: "Run a local stand-in for the prescription extraction service",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := &http.Server{
				Addr:              addr,
				Handler:           extraction.NewStubHandler(log),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			log.Info("stub extractor listening", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":5000", "listen address")
	return cmd
}
