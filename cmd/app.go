package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/vkinder/internal/ai"
	"github.com/spigell/vkinder/internal/ai/gemini"
	"github.com/spigell/vkinder/internal/bot"
	"github.com/spigell/vkinder/internal/logger"
	"github.com/spigell/vkinder/internal/messenger"
	"github.com/spigell/vkinder/internal/metrics"
	"github.com/spigell/vkinder/internal/secrets"
	"github.com/spigell/vkinder/internal/session"
	"github.com/spigell/vkinder/internal/storage/postgres"
	"github.com/spigell/vkinder/internal/storage/sqlite"
	"github.com/spigell/vkinder/internal/vk"
)

type dataStore interface {
	bot.Store
	Migrate(ctx context.Context) error
	Close() error
}

// application holds everything a running bot needs.
type application struct {
	vk      *vk.Client
	bot     *bot.Bot
	metrics *metrics.Metrics
	closers []func()
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func mustConfig(logger *zap.Logger) *Config {
	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	return config
}

// setup wires the bot. When sender is nil replies go back through the VK API.
func setup(ctx context.Context, config *Config, logger *zap.Logger, sender messenger.Sender) (*application, error) {
	a := &application{metrics: metrics.New()}

	client, err := newVKClient(config.VK, logger)
	if err != nil {
		return nil, err
	}
	client.WithObserver(a.metrics)
	a.vk = client

	group, err := client.ValidateToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate vk token: %w", err)
	}
	logger.Info("vk token is valid", zap.String("group", group), zap.Bool("user_token", client.HasUserToken()))
	if !client.HasUserToken() {
		logger.Warn("user token is not configured, search and likes are limited",
			zap.String("hint", "set VK_USER_TOKEN or vk.user-token"),
		)
	}

	store, err := openStore(ctx, config.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing storage", zap.Error(err))
		}
	})

	if config.Storage.AutoMigrate {
		if err := store.Migrate(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("migrate storage: %w", err)
		}
	}

	sessions, closeSessions, err := newSessionStore(ctx, config.Sessions, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeSessions)

	icebreaker, err := newIcebreaker(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping icebreaker", zap.Error(err))
		icebreaker = nil
	}

	if sender == nil {
		sender = client
	}

	a.bot = bot.New(bot.Deps{
		Social:     client,
		Store:      store,
		Sessions:   sessions,
		Sender:     sender,
		Icebreaker: icebreaker,
		Observer:   a.metrics,
		Logger:     logger,
	}, config.Bot)

	return a, nil
}

func newVKClient(cfg *VKConfig, logger *zap.Logger) (*vk.Client, error) {
	token, err := secrets.Load(secrets.Source{
		Name:  "vk community token",
		File:  cfg.TokenFile,
		Value: cfg.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set VK_TOKEN or vk.token-file)", err)
	}

	userToken, err := secrets.Optional(secrets.Source{
		Name:  "vk user token",
		File:  cfg.UserTokenFile,
		Value: cfg.UserToken,
	})
	if err != nil {
		return nil, err
	}

	if cfg.GroupID <= 0 {
		return nil, errors.New("vk group id is required (set GROUP_ID or vk.group-id)")
	}

	client := vk.New(logger.Named("vk"), token, cfg.GroupID).WithUserToken(userToken)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}
	if cfg.APIVersion != "" {
		client.Version = cfg.APIVersion
	}

	return client, nil
}

func openStore(ctx context.Context, cfg *StorageConfig, logger *zap.Logger) (dataStore, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		pool, err := postgres.NewPool(ctx, dsn)
		if err != nil {
			return nil, err
		}
		logger.Info("using postgres storage")
		return postgres.NewStore(pool), nil
	}

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
	return store, nil
}

func newSessionStore(ctx context.Context, cfg *SessionsConfig, logger *zap.Logger) (session.Store, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		logger.Info("keeping sessions in memory")
		return session.NewMemoryStore(), func() {}, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, nil, errors.New("sessions.redis-addr is required for the redis backend")
		}

		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}

		logger.Info("keeping sessions in redis", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.TTL))
		return session.NewRedisStore(client, cfg.TTL), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported sessions backend: %s", cfg.Backend)
	}
}

func newIcebreaker(ctx context.Context, cfg *AIConfig, base *zap.Logger) (ai.Icebreaker, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, base)
	if err != nil {
		return nil, err
	}

	return gemini.NewIcebreaker(generator, logger.WithCommonFields(base, "gemini", generator.Model()), cfg.Gemini.MaxLogLength), nil
}
