package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/TriBrain/TweetAgent/internal/botfeature"
	"github.com/TriBrain/TweetAgent/internal/chain"
	"github.com/TriBrain/TweetAgent/internal/events"
	"github.com/TriBrain/TweetAgent/internal/features/contest"
	"github.com/TriBrain/TweetAgent/internal/features/news"
	"github.com/TriBrain/TweetAgent/internal/features/xcore"
	"github.com/TriBrain/TweetAgent/internal/handlers"
	"github.com/TriBrain/TweetAgent/internal/models"
	"github.com/TriBrain/TweetAgent/internal/platform"
	"github.com/TriBrain/TweetAgent/internal/prompts"
	"github.com/TriBrain/TweetAgent/internal/store"
	"github.com/TriBrain/TweetAgent/pkg/config"
	"github.com/TriBrain/TweetAgent/pkg/database"
	"github.com/TriBrain/TweetAgent/pkg/llm"
	"github.com/TriBrain/TweetAgent/pkg/logging"
)

func main() {
	logger := logging.NewLoggerWithService("tweetagent")
	config.LoadEnv(logger)
	logger.SetLevel(config.GetLogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := database.DefaultConfig()
	dbCfg.URL = config.RequireEnv("DATABASE_URL")
	db := database.MustConnect(dbCfg, logger)
	defer db.Close()

	st := store.New(db, logger)
	if err := st.ApplySchema(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	var redisClient *redis.Client
	if addr := config.GetEnv("REDIS_ADDR", ""); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.GetEnv("REDIS_PASSWORD", ""),
		})
		defer redisClient.Close()
	}

	var dispatcher *events.Dispatcher
	hub := events.NewHub(logger, func(client *events.Client) {
		if dispatcher != nil {
			dispatcher.ReplayRecent(client)
		}
	})
	dispatcher = events.NewDispatcher(hub, redisClient, logger)
	go hub.Run()

	llmProvider, err := llm.NewProvider(llm.LoadConfig())
	if err != nil {
		logger.WithError(err).Fatal("Failed to configure LLM provider")
	}
	invoker := llm.NewInvoker(llmProvider, logger)

	var platformClient platform.Client
	if token := config.GetEnv("X_BEARER_TOKEN", ""); token != "" {
		platformClient = platform.NewXClient(token, logger)
	} else {
		logger.Warn("No platform credentials, running with the simulated client")
		platformClient = platform.NewSimulatedClient(logger)
	}

	promptBundle := prompts.MustDefault()
	if path := config.GetEnv("PROMPTS_FILE", ""); path != "" {
		promptBundle, err = prompts.LoadFile(path)
		if err != nil {
			logger.WithError(err).Fatal("Failed to load prompt bundle")
		}
	}

	registry := botfeature.NewRegistry(logger)
	providers := []*botfeature.Provider{
		xcore.FetcherProvider(),
		xcore.HandlerProvider(),
		xcore.SenderProvider(),
		contest.HandlerProvider(),
		contest.ReposterProvider(),
		contest.AddressCollectorProvider(),
		contest.AirdropSnapshotProvider(),
		contest.AirdropSenderProvider(),
		news.FilterProvider(),
		news.ReplierProvider(),
		news.WriterProvider(),
	}
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			logger.WithError(err).Fatal("Failed to register feature provider")
		}
	}

	bots, err := st.ListBots(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Failed to list bots")
	}
	if len(bots) == 0 {
		bots, err = bootstrapBot(ctx, st, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to bootstrap bot")
		}
	}

	deps := botfeature.Deps{
		Store:      st,
		Platform:   platformClient,
		LLM:        invoker,
		Transfer:   chain.NewSimulatedTransferClient(logger),
		Dispatcher: dispatcher,
		Prompts:    promptBundle,
		Logger:     logger,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, bot := range bots {
		records, err := registry.EnsureRequiredFeatures(ctx, st, bot)
		if err != nil {
			logger.WithError(err).WithField("bot", bot.Name).Fatal("Failed to ensure bot features")
		}
		bundle, err := registry.BuildBundle(ctx, bot, records, deps)
		if err != nil {
			logger.WithError(err).WithField("bot", bot.Name).Fatal("Failed to build bot features")
		}
		scheduler := botfeature.NewScheduler(bundle, logger)
		group.Go(func() error {
			return scheduler.Run(groupCtx)
		})
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.New(st, registry, hub, dispatcher, logger).RegisterRoutes(router)

	server := &http.Server{
		Addr:    ":" + config.GetEnv("PORT", "8080"),
		Handler: router,
	}
	group.Go(func() error {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("Service exited with error")
	}
	logger.Info("Service stopped")
}

// bootstrapBot creates the initial bot from BOT_* env variables so a fresh
// database comes up with a working identity.
func bootstrapBot(ctx context.Context, st *store.Store, logger logging.Logger) ([]*models.Bot, error) {
	name := config.GetEnv("BOT_NAME", "")
	if name == "" {
		logger.Warn("No bots configured and BOT_NAME is unset, running with none")
		return nil, nil
	}
	bot, err := st.CreateBot(ctx,
		name,
		config.GetEnv("BOT_PLATFORM_USER_ID", name),
		config.GetEnv("BOT_SCREEN_NAME", name),
	)
	if err != nil {
		return nil, err
	}
	logger.WithField("bot", bot.Name).Info("Bootstrapped initial bot")
	return []*models.Bot{bot}, nil
}
