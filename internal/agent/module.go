// Package agent composes the sync agent: the store, the backend client, the
// view snapshots, the reconciliation schedulers and the dashboard API, wired
// together with fx.
package agent

import (
	"context"

	"github.com/leadline/leadline/internal/api"
	"github.com/leadline/leadline/internal/bus"
	"github.com/leadline/leadline/internal/config"
	"github.com/leadline/leadline/internal/conv"
	"github.com/leadline/leadline/internal/crm"
	"github.com/leadline/leadline/internal/delivery"
	"github.com/leadline/leadline/internal/draft"
	"github.com/leadline/leadline/internal/lock"
	"github.com/leadline/leadline/internal/logging"
	"github.com/leadline/leadline/internal/optimistic"
	"github.com/leadline/leadline/internal/poll"
	"github.com/leadline/leadline/internal/popover"
	"github.com/leadline/leadline/internal/session"
	"github.com/leadline/leadline/internal/store"
	"github.com/leadline/leadline/internal/view"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	Config      *config.Config
}

// Module returns the fx module for the agent, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("agent",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideClient,
			provideConversationList,
			provideLeadList,
			provideThreads,
			provideDrafts,
			providePopover,
			provideResolver,
			provideSchedulers,
			provideTracker,
			provideGuard,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	logger.Info("acquiring agent lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("agent lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := session.DBPath(p.SessionName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideClient(p Params, logger *zap.Logger) *crm.Client {
	return crm.New(p.Config.BackendURL, p.Config.BackendToken, logger)
}

func provideConversationList() *view.ConversationList {
	return view.NewConversationList()
}

func provideLeadList() *view.LeadList {
	return view.NewLeadList()
}

func provideThreads() *view.Threads {
	return view.NewThreads()
}

func provideDrafts(db *store.DB, logger *zap.Logger) *draft.Store {
	return draft.NewStore(db, logger)
}

func providePopover(b *bus.Bus) *popover.Controller {
	return popover.NewController(b)
}

func provideResolver(client *crm.Client, threads *view.Threads, drafts *draft.Store, leads *view.LeadList, pop *popover.Controller, b *bus.Bus, logger *zap.Logger) *conv.Resolver {
	return conv.NewResolver(client, threads, drafts, leads, b, logger, pop.AdoptTarget)
}

// Schedulers groups the per-resource reconciliation loops.
type Schedulers struct {
	Conversations *poll.Scheduler
	Thread        *poll.Scheduler
	Leads         *poll.Scheduler
}

// All returns the schedulers in a stable order for status reporting.
func (s *Schedulers) All() []*poll.Scheduler {
	return []*poll.Scheduler{s.Conversations, s.Thread, s.Leads}
}

func provideSchedulers(p Params, client *crm.Client, convs *view.ConversationList, leads *view.LeadList, threads *view.Threads, pop *popover.Controller, b *bus.Bus, logger *zap.Logger) *Schedulers {
	period := p.Config.PollInterval()
	return &Schedulers{
		Conversations: poll.NewScheduler("conversations", period, func(ctx context.Context) error {
			items, err := client.ListConversations(ctx)
			if err != nil {
				return err
			}
			convs.Replace(items)
			return nil
		}, b, logger),
		Thread: poll.NewScheduler("thread", period, func(ctx context.Context) error {
			// Only a popover showing a server-backed conversation has
			// anything to reconcile; virtual threads are local-only.
			session := pop.Snapshot()
			id := session.Target.ConversationID
			if session.Phase == popover.Closed || id == "" {
				return nil
			}
			cw, err := client.GetConversation(ctx, id)
			if err != nil {
				return err
			}
			thread := threads.Ensure(draft.ConvKey(id), cw.Conversation)
			thread.Replace(cw.Conversation, cw.Messages)
			return nil
		}, b, logger),
		Leads: poll.NewScheduler("leads", period, func(ctx context.Context) error {
			items, err := client.ListLeads(ctx)
			if err != nil {
				return err
			}
			leads.Replace(items)
			return nil
		}, b, logger),
	}
}

func provideTracker(client *crm.Client, threads *view.Threads, resolver *conv.Resolver, scheds *Schedulers, b *bus.Bus, logger *zap.Logger) *delivery.Tracker {
	return delivery.NewTracker(client, threads, resolver, b, logger, scheds.Conversations.Poke)
}

func provideGuard(b *bus.Bus, logger *zap.Logger) *optimistic.Guard {
	return optimistic.NewGuard(b, logger)
}

func provideServer(p Params, convs *view.ConversationList, threads *view.Threads, leads *view.LeadList, tracker *delivery.Tracker, resolver *conv.Resolver, drafts *draft.Store, pop *popover.Controller, guard *optimistic.Guard, client *crm.Client, scheds *Schedulers, logger *zap.Logger) *api.Server {
	return api.NewServer(p.Config.Listen(), p.Config.Origin(), api.Deps{
		Session:       p.SessionName,
		StorePath:     session.DBPath(p.SessionName),
		Conversations: convs,
		Threads:       threads,
		Leads:         leads,
		Tracker:       tracker,
		Resolver:      resolver,
		Drafts:        drafts,
		Popover:       pop,
		Guard:         guard,
		CRM:           client,
		Schedulers:    scheds.All(),
		Logger:        logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, srv *api.Server, lk *lock.Lock, scheds *Schedulers, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			for _, s := range scheds.All() {
				s.Start(context.Background())
			}
			srv.Start()
			logger.Info("agent started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("error stopping api server", zap.Error(err))
			}
			for _, s := range scheds.All() {
				s.Stop()
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("agent stopped")
			return nil
		},
	})
}
