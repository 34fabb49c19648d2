package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/srmx/assistant/assets"
	"github.com/srmx/assistant/internal/agent"
	"github.com/srmx/assistant/internal/bridge"
	"github.com/srmx/assistant/internal/config"
	"github.com/srmx/assistant/internal/docs"
	"github.com/srmx/assistant/internal/llm"
	"github.com/srmx/assistant/internal/queue"
	"github.com/srmx/assistant/internal/repository"
	"github.com/srmx/assistant/internal/server"
	"github.com/srmx/assistant/internal/tools"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/genai"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "server").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx := context.Background()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to mongodb")
	}
	defer func() {
		if err := mongoClient.Disconnect(ctx); err != nil {
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

	modelClient, err := newModelClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("create model client")
	}

	index, err := docs.NewIndex(cfg.Docs.Dir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("index documents")
	}

	bridgeClient := bridge.NewHTTPClient(cfg.Bridge.URL, cfg.Bridge.PollInterval, logger)
	meetings := repository.NewMongoMeetingRepository(database, "")

	registry, err := tools.Catalog(tools.CatalogDeps{
		Profiles:      repository.NewMongoProfileRepository(database, ""),
		Meetings:      meetings,
		Docs:          index,
		Bridge:        bridgeClient,
		OwnerName:     cfg.Owner.Name,
		BridgeTimeout: cfg.Bridge.Timeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("build tool registry")
	}

	assistant := agent.New(agent.Config{
		LLM:               modelClient,
		Registry:          registry,
		Executor:          tools.NewExecutor(registry, logger),
		Results:           repository.NewMongoToolResultRepository(database, ""),
		Queue:             queue.NewRedisQueue(redisClient, cfg.Queue.Key),
		SystemInstruction: assets.SystemInstruction,
		Logger:            logger,
	})

	var voice *server.VoiceRelay
	if cfg.Voice.UpstreamURL != "" {
		header := http.Header{}
		if cfg.Voice.APIKey != "" {
			header.Set("Authorization", "Bearer "+cfg.Voice.APIKey)
		}
		voice = server.NewVoiceRelay(cfg.Voice.UpstreamURL, header, logger)
	}

	srv := server.New(assistant, meetings, voice, logger)

	logger.Info().Str("addr", cfg.Server.Addr).Str("provider", cfg.LLM.Provider).Msg("listening")
	if err := http.ListenAndServe(cfg.Server.Addr, srv.Handler()); err != nil {
		logger.Fatal().Err(err).Msg("http server")
	}
}

func newModelClient(ctx context.Context, cfg *config.Config) (llm.Client, error) {
	switch cfg.LLM.Provider {
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  cfg.LLM.APIKey,
		})
		if err != nil {
			return nil, err
		}
		return llm.NewGeminiClient(client, cfg.LLM.Model), nil
	case "openai":
		return llm.NewOpenAIClient(openai.NewClient(cfg.LLM.APIKey), cfg.LLM.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}
