package main

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/pesio-ai/be-hr-approvals/internal/client"
	"github.com/pesio-ai/be-hr-approvals/internal/config"
	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/logger"
	"github.com/pesio-ai/be-hr-approvals/internal/repository"
	"github.com/pesio-ai/be-hr-approvals/internal/service"
)

// app holds the wired services for one process.
type app struct {
	db        *database.DB
	nc        *nats.Conn
	catalog   *service.CatalogService
	tracker   *service.RequestTracker
	scheduler *service.EscalationScheduler
	dashboard *service.DashboardAggregator
}

// stores bundles the three storage roles; the memory store fills all of them.
type stores struct {
	catalog  repository.CatalogStore
	requests repository.RequestStore
	audit    repository.AuditStore
}

func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (stores, *database.DB, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return stores{}, nil, err
		}
		log.Info().
			Str("host", cfg.Database.Host).
			Str("database", cfg.Database.Database).
			Msg("Database connection established")
		return stores{
			catalog:  repository.NewPostgresCatalog(db),
			requests: repository.NewApprovalRequestRepository(db),
			audit:    repository.NewApprovalAuditRepository(db),
		}, db, nil
	default:
		log.Warn().Msg("Using in-memory storage; state is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{catalog: mem, requests: mem, audit: mem}, nil, nil
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	db, err := database.New(ctx, database.Config{
		DSN:         cfg.Database.DSN(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
		HealthCheck: cfg.Database.HealthCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newApp opens storage and NATS, then builds the services on top.
func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	st, db, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if db != nil {
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	a := &app{db: db}

	var events service.EventPublisher
	if cfg.NATS.URL != "" {
		nc, err := client.ConnectNATS(cfg.NATS, log.Component("nats").Logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.nc = nc
		events = client.NewNotificationPublisher(nc, cfg.NATS.SubjectPrefix, log.Component("notifications").Logger)
		log.Info().Str("url", cfg.NATS.URL).Msg("Notification publisher connected")
	} else {
		log.Info().Msg("NATS URL not set; notifications disabled")
	}

	caps := service.NewCapabilityRegistry(cfg.Capabilities)
	resolver := service.NewEligibilityResolver(st.catalog, cfg.Escalation.DefaultSLA, log.Component("resolver"))

	a.catalog = service.NewCatalogService(st.catalog, log.Component("catalog"))
	a.tracker = service.NewRequestTracker(st.requests, st.audit, resolver, caps, events, log.Component("tracker"))
	a.scheduler = service.NewEscalationScheduler(st.requests, st.audit, events, cfg.Escalation.SweepInterval, log.Component("escalation"))
	a.dashboard = service.NewDashboardAggregator(st.catalog, st.requests, log.Component("dashboard"))
	return a, nil
}

// ping reports storage health.
func (a *app) ping(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	return a.db.Ping(ctx)
}

func (a *app) close() {
	if a.nc != nil {
		_ = a.nc.Drain()
	}
	if a.db != nil {
		a.db.Close()
	}
}
