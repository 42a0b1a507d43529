package main

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-api/internal/analytics"
	"github.com/sells-group/lead-api/internal/config"
	"github.com/sells-group/lead-api/internal/contact"
	"github.com/sells-group/lead-api/internal/lead"
	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/payload"
	"github.com/sells-group/lead-api/internal/pipeline"
	"github.com/sells-group/lead-api/internal/store"
	"github.com/sells-group/lead-api/internal/webhook"
)

// env holds the wired collaborators shared by the serve and migrate commands.
type env struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// openStore selects the backend from config: Postgres in production,
// SQLite for local development.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres", "":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.Pool.MaxConns,
			MinConns: cfg.Store.Pool.MinConns,
		})
	default:
		return nil, eris.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}
}

// initEnv wires the full submission pipeline from config.
func initEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	poller := lead.NewPoller(st,
		cfg.Attribution.MaxAttempts,
		time.Duration(cfg.Attribution.DelayMs)*time.Millisecond,
		clockwork.NewRealClock(),
	)

	dispatcher := webhook.NewDispatcher(
		webhook.Endpoints{
			ByFunnel: map[model.FunnelType]string{
				model.FunnelAnnuity:         cfg.Webhook.AnnuityURL,
				model.FunnelFinalExpense:    cfg.Webhook.FinalExpenseURL,
				model.FunnelReverseMortgage: cfg.Webhook.ReverseMortgageURL,
			},
			Fallback: cfg.Webhook.FallbackURL,
		},
		webhook.WithTimeout(time.Duration(cfg.Webhook.TimeoutSecs)*time.Second),
		webhook.WithRateLimit(cfg.Webhook.RateLimitRPS),
	)

	fanout := analytics.Fanout{
		Recorders: []analytics.Recorder{
			analytics.LogRecorder{},
			analytics.TrailRecorder{Store: st},
		},
	}

	p := pipeline.New(
		st,
		contact.NewResolver(st),
		lead.NewCoordinator(st),
		poller,
		payload.Composer{Source: cfg.Webhook.Source},
		dispatcher,
		fanout,
	)

	return &env{Store: st, Pipeline: p}, nil
}
