package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/srmx/assistant/internal/bridge"
	"github.com/srmx/assistant/internal/config"
	"github.com/srmx/assistant/internal/docs"
	"github.com/srmx/assistant/internal/queue"
	"github.com/srmx/assistant/internal/repository"
	"github.com/srmx/assistant/internal/tools"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "worker").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to mongodb")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("mongodb disconnect")
		}
	}()
	database := mongoClient.Database(cfg.Mongo.Database)

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	index, err := docs.NewIndex(cfg.Docs.Dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("index documents")
	}

	registry, err := tools.Catalog(tools.CatalogDeps{
		Profiles:      repository.NewMongoProfileRepository(database, ""),
		Meetings:      repository.NewMongoMeetingRepository(database, ""),
		Docs:          index,
		Bridge:        bridge.NewHTTPClient(cfg.Bridge.URL, cfg.Bridge.PollInterval, logger),
		OwnerName:     cfg.Owner.Name,
		BridgeTimeout: cfg.Bridge.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build tool registry")
	}

	worker := queue.NewWorker(
		redisClient,
		cfg.Queue.Key,
		tools.NewExecutor(registry, logger),
		repository.NewMongoToolResultRepository(database, ""),
		logger,
	)

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
	logger.Info().Msg("worker shut down")
}
