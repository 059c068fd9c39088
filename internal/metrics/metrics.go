// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Decisions          *prometheus.CounterVec
	DuplicateDecisions prometheus.Counter
	MatchesCreated     prometheus.Counter
	MatchConflicts     prometheus.Counter
	MatchesDeactivated *prometheus.CounterVec
	Rewinds            *prometheus.CounterVec
	MessagesSent       prometheus.Counter
	MessagesRead       prometheus.Counter
	Notifications      *prometheus.CounterVec
	FeedReconnects     prometheus.Counter
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "muzz_decisions_total",
			Help: "Decisions recorded, by kind.",
		}, []string{"kind"}),
		DuplicateDecisions: f.NewCounter(prometheus.CounterOpts{
			Name: "muzz_decisions_duplicate_total",
			Help: "Decisions rejected because the pair was already decided.",
		}),
		MatchesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "muzz_matches_created_total",
			Help: "Matches created.",
		}),
		MatchConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "muzz_match_conflicts_absorbed_total",
			Help: "Match inserts absorbed because the pair already had an active match.",
		}),
		MatchesDeactivated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "muzz_matches_deactivated_total",
			Help: "Matches deactivated, by cause.",
		}, []string{"cause"}),
		Rewinds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "muzz_rewinds_total",
			Help: "Rewind attempts, by outcome.",
		}, []string{"outcome"}),
		MessagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "muzz_messages_sent_total",
			Help: "Chat messages stored.",
		}),
		MessagesRead: f.NewCounter(prometheus.CounterOpts{
			Name: "muzz_messages_read_total",
			Help: "Messages transitioned to read.",
		}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "muzz_notifications_total",
			Help: "Notifications emitted, by kind.",
		}, []string{"kind"}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Name: "muzz_feed_reconnects_total",
			Help: "Live feed resubscriptions after a dropped connection.",
		}),
	}
}

func (m *Metrics) Decision(kind string) {
	if m != nil {
		m.Decisions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) DuplicateDecision() {
	if m != nil {
		m.DuplicateDecisions.Inc()
	}
}

func (m *Metrics) MatchCreated() {
	if m != nil {
		m.MatchesCreated.Inc()
	}
}

func (m *Metrics) MatchConflict() {
	if m != nil {
		m.MatchConflicts.Inc()
	}
}

func (m *Metrics) MatchDeactivated(cause string) {
	if m != nil {
		m.MatchesDeactivated.WithLabelValues(cause).Inc()
	}
}

func (m *Metrics) Rewind(outcome string) {
	if m != nil {
		m.Rewinds.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) MessageSent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

func (m *Metrics) MessagesMarkedRead(n int) {
	if m != nil {
		m.MessagesRead.Add(float64(n))
	}
}

func (m *Metrics) Notification(kind string) {
	if m != nil {
		m.Notifications.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) FeedReconnect() {
	if m != nil {
		m.FeedReconnects.Inc()
	}
}

// Serve exposes /metrics for gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics.listen", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
