package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pesio-ai/be-hr-approvals/internal/handler"
	"github.com/pesio-ai/be-hr-approvals/internal/metrics"
	"github.com/pesio-ai/be-hr-approvals/internal/middleware"
	"github.com/pesio-ai/be-hr-approvals/internal/pb"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and gRPC APIs and the escalation scheduler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().Int("http-port", 0, "HTTP listen port")
	cmd.Flags().Int("grpc-port", 0, "gRPC listen port")
	cmd.Flags().Duration("sweep-interval", 0, "Escalation sweep interval (0 keeps the configured value)")
	_ = opts.loader.Viper().BindPFlag("server.http_port", cmd.Flags().Lookup("http-port"))
	_ = opts.loader.Viper().BindPFlag("server.grpc_port", cmd.Flags().Lookup("grpc-port"))
	_ = opts.loader.Viper().BindPFlag("escalation.sweep_interval", cmd.Flags().Lookup("sweep-interval"))
	return cmd
}

func runServe(parent context.Context, opts *rootOptions) error {
	cfg, log, err := opts.load()
	if err != nil {
		return err
	}

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Str("storage", cfg.Database.Driver).
		Msg("Starting HR Approvals Service")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	// HTTP
	httpHandler := handler.NewHTTPHandler(a.catalog, a.tracker, a.scheduler, a.dashboard, log.Component("http"))
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := a.ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	mux.Handle("/metrics", metrics.Handler())
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      middleware.Chain(mux, log, []string{"*"}, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// gRPC
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(middleware.UnaryServerInterceptor(log.Component("grpc"))))
	pb.RegisterApprovalServiceServer(grpcServer, handler.NewGRPCHandler(a.tracker, a.scheduler, a.dashboard, log))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Lists services only; ApprovalService has no file descriptor to describe.
	reflection.Register(grpcServer)

	grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to create gRPC listener: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info().Int("port", cfg.Server.GRPCPort).Msg("Starting gRPC server")
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.scheduler.Run(gctx)
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		grpcServer.GracefulStop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		return err
	}
	log.Info().Msg("Server stopped")
	return nil
}
