package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/cache"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/conversation"
	"github.com/oggyb/muzz-match/internal/events"
	"github.com/oggyb/muzz-match/internal/ledger"
	"github.com/oggyb/muzz-match/internal/match"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/notify"
	"github.com/oggyb/muzz-match/internal/presence"
	"github.com/oggyb/muzz-match/internal/repository"
	"github.com/oggyb/muzz-match/internal/rewind"
	"github.com/oggyb/muzz-match/internal/swipe"
)

// AppContext holds shared dependencies (DB, Redis, Logger, etc.) and the
// engine components built on top of them.
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Bus        events.Bus
	Logger     *slog.Logger
	Metrics    *metrics.Metrics

	Notifier *notify.Dispatcher
	Presence *presence.Tracker
	Ledger   *ledger.Ledger
	Matches  *match.Detector
	Rewinds  *rewind.Registry
	Channel  *conversation.Channel
	Swipes   *swipe.Engine
}

// New creates a new AppContext and wires the engine.
// rdb, bus and m may be nil: no like-count cache, no live feeds, no metrics.
func New(
	cfg *config.Config,
	database *gorm.DB,
	rdb *cache.RedisCache,
	bus events.Bus,
	logger *slog.Logger,
	m *metrics.Metrics,
) *AppContext {
	if cfg == nil {
		cfg = config.New()
	}

	var likeCache ledger.LikeCountCache
	if rdb != nil {
		likeCache = rdb
	}

	notifier := notify.NewDispatcher(repository.NewNotificationRepository(database), bus, logger, m)
	tracker := presence.NewTracker(repository.NewPresenceRepository(database), cfg.Presence.OnlineWindow, logger)
	decisions := ledger.New(repository.NewDecisionRepository(database), likeCache, notifier, logger, m)
	matches := match.NewDetector(decisions, repository.NewMatchRepository(database), notifier, bus, logger, m)

	return &AppContext{
		Config:     cfg,
		DB:         database,
		RedisCache: rdb,
		Bus:        bus,
		Logger:     logger,
		Metrics:    m,

		Notifier: notifier,
		Presence: tracker,
		Ledger:   decisions,
		Matches:  matches,
		Rewinds:  rewind.NewRegistry(cfg.Rewind.Budget, decisions, matches, logger, m),
		Channel: conversation.NewChannel(
			repository.NewMessageRepository(database), matches, bus, notifier, tracker, logger, m,
			conversation.Options{
				ReplayLimit:      cfg.Chat.ReplayLimit,
				SubscriberBuffer: cfg.Chat.SubscriberBuffer,
			},
		),
		Swipes: swipe.NewEngine(decisions, matches, tracker, logger),
	}
}
