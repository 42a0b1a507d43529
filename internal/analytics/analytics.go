// Package analytics is the side-effect port for conversion tracking.
// Recorders run off the critical path: the pipeline's correctness never
// depends on any of them succeeding.
package analytics

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-api/internal/model"
	"github.com/sells-group/lead-api/internal/store"
)

// Event is one conversion-funnel occurrence worth recording.
type Event struct {
	Type      string
	SessionID string
	LeadID    string
	Funnel    model.FunnelType
	Referrer  string
}

// Recorder consumes events. Implementations must be safe for concurrent use.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// LogRecorder writes events to the structured log.
type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, ev Event) error {
	zap.L().Info("conversion event",
		zap.String("type", ev.Type),
		zap.String("session_id", ev.SessionID),
		zap.String("lead_id", ev.LeadID),
		zap.String("funnel", string(ev.Funnel)),
	)
	return nil
}

// TrailRecorder appends events to the session event trail, so the trail a
// later funnel page reads for referrer enrichment includes submissions.
type TrailRecorder struct {
	Store store.Store
}

func (r TrailRecorder) Record(ctx context.Context, ev Event) error {
	return r.Store.AppendSessionEvent(ctx, &model.SessionEvent{
		SessionID: ev.SessionID,
		EventType: ev.Type,
		Referrer:  ev.Referrer,
	})
}

// Fanout dispatches each event to every recorder concurrently,
// fire-and-forget. Failures are logged and swallowed.
type Fanout struct {
	Recorders []Recorder
	Timeout   time.Duration
}

// Emit records ev on all recorders in the background and returns
// immediately. The background work gets its own context so an HTTP
// request finishing does not cancel it.
func (f Fanout) Emit(ev Event) {
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	recorders := f.Recorders

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		g, ctx := errgroup.WithContext(ctx)
		for _, r := range recorders {
			g.Go(func() error {
				if err := r.Record(ctx, ev); err != nil {
					zap.L().Warn("analytics recorder failed",
						zap.String("type", ev.Type),
						zap.String("session_id", ev.SessionID),
						zap.Error(err),
					)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}
