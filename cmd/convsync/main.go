package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/convsync/internal/config"
	"github.com/mbeoliero/convsync/internal/draft"
	"github.com/mbeoliero/convsync/internal/handler"
	"github.com/mbeoliero/convsync/internal/identity"
	"github.com/mbeoliero/convsync/internal/presence"
	"github.com/mbeoliero/convsync/internal/reconciler"
	"github.com/mbeoliero/convsync/internal/repository"
	"github.com/mbeoliero/convsync/internal/router"
	"github.com/mbeoliero/convsync/internal/service"
	"github.com/mbeoliero/convsync/internal/store"
	"github.com/mbeoliero/convsync/internal/transport"
	"github.com/mbeoliero/convsync/pkg/idgen"
	"github.com/mbeoliero/convsync/pkg/jwt"
	"github.com/mbeoliero/convsync/sdk"
	"github.com/mbeoliero/kit/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath := os.Getenv("CONVSYNC_CONFIG")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s, transport=%s, draft_backend=%s", cfg.App.Mode, cfg.Transport.Kind, cfg.Draft.Backend)

	selfId, err := jwt.ResolveSelfId(cfg.App.SelfId, cfg.Upstream.Token)
	if err != nil {
		log.CtxError(ctx, "failed to resolve self id: %v", err)
		panic(err)
	}
	cfg.App.SelfId = selfId
	log.CtxInfo(ctx, "running as user_id=%s", selfId)

	// Initialize draft storage
	draftRepo, err := repository.NewDraftRepo(ctx, cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize draft storage: %v", err)
		panic(err)
	}
	defer draftRepo.Close()

	if err := repository.CheckConnection(ctx, draftRepo); err != nil {
		log.CtxError(ctx, "draft storage check failed: %v", err)
		panic(err)
	}

	// Operation ids for dispatched events
	gen, err := idgen.NewSonyflakeGenerator(uint16(cfg.App.PlatformId))
	if err != nil {
		log.CtxWarn(ctx, "sonyflake unavailable, falling back to uuid: %v", err)
		idgen.SetDefaultGenerator(idgen.UUIDGenerator{})
	} else {
		idgen.SetDefaultGenerator(gen)
	}
	opIds, err := idgen.GetDefaultGenerator()
	if err != nil {
		panic(err)
	}

	// Core state
	st := store.NewStore(selfId)
	idx := presence.NewIndex()
	rec := reconciler.New(st, idx, cfg.Dispatcher.DedupSize())
	dispatcher := reconciler.NewDispatcher(rec, cfg.Dispatcher.WorkerNum, cfg.Dispatcher.QueueSize, opIds)

	source, err := transport.NewSource(cfg, cfg.Upstream.Token)
	if err != nil {
		log.CtxError(ctx, "failed to create event source: %v", err)
		panic(err)
	}

	upstream, err := sdk.NewClient(cfg.Upstream.BaseURL,
		sdk.WithToken(cfg.Upstream.Token),
		sdk.WithTimeout(cfg.Upstream.Timeout),
	)
	if err != nil {
		log.CtxError(ctx, "failed to create upstream client: %v", err)
		panic(err)
	}

	convService := service.NewConversationService(service.Deps{
		Store:      st,
		Reconciler: rec,
		Events:     dispatcher,
		Drafts:     draft.NewCache(draftRepo),
		Colors:     identity.NewColorAssigner(cfg.Identity.Palette, cfg.Identity.RetentionLimit),
		Presence:   idx,
		Joiner:     source,
		Upstream:   upstream,
	})

	handlers := &router.Handlers{
		Conversation: handler.NewConversationHandler(convService),
		Draft:        handler.NewDraftHandler(convService),
		Presence:     handler.NewPresenceHandler(convService),
		Subscription: handler.NewSubscriptionHandler(convService),
	}

	// Create Hertz server
	h := server.New(
		server.WithHostPorts(cfg.Server.Addr()),
		server.WithExitWaitTime(time.Second),
	)
	router.SetupRouter(h, cfg, handlers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return dispatcher.Run(gctx)
	})

	// events for conversations that are not loaded yet are dropped, so load first
	// and reload whenever the transport comes back
	source.OnReconnect(func(ctx context.Context) {
		if err := convService.LoadFromUpstream(ctx); err != nil {
			log.CtxWarn(ctx, "reload after reconnect failed: %v", err)
		}
	})
	g.Go(func() error {
		if err := convService.LoadFromUpstream(gctx); err != nil {
			return err
		}
		return source.Run(gctx, dispatcher)
	})

	g.Go(func() error {
		log.CtxInfo(gctx, "local api starting on %s", cfg.Server.Addr())
		if err := h.Run(); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.CtxInfo(ctx, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return h.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.CtxError(ctx, "convsync stopped with error: %v", err)
		os.Exit(1)
	}

	applied, dropped := dispatcher.Stats()
	log.CtxInfo(ctx, "convsync stopped: applied=%d, dropped=%d", applied, dropped)
}
