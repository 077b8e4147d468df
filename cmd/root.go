package cmd

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/vkinder/internal/bot"
)

const (
	app = "vkinder"
)

type Config struct {
	VK       *VKConfig       `mapstructure:"vk"`
	Storage  *StorageConfig  `mapstructure:"storage"`
	Sessions *SessionsConfig `mapstructure:"sessions"`
	Metrics  *MetricsConfig  `mapstructure:"metrics"`
	Bot      bot.Config      `mapstructure:"bot"`
	AI       *AIConfig       `mapstructure:"ai"`
}

type VKConfig struct {
	Token         string `mapstructure:"token"`
	TokenFile     string `mapstructure:"token-file"`
	UserToken     string `mapstructure:"user-token"`
	UserTokenFile string `mapstructure:"user-token-file"`
	GroupID       int64  `mapstructure:"group-id"`
	UserAgent     string `mapstructure:"user-agent"`
	APIVersion    string `mapstructure:"api-version"`
}

type StorageConfig struct {
	// DSN selects PostgreSQL. When empty the SQLite file at SQLitePath is used.
	DSN         string `mapstructure:"dsn"`
	SQLitePath  string `mapstructure:"sqlite-path"`
	AutoMigrate bool   `mapstructure:"auto-migrate"`
}

type SessionsConfig struct {
	// Backend is either "memory" or "redis".
	Backend       string        `mapstructure:"backend"`
	RedisAddr     string        `mapstructure:"redis-addr"`
	RedisPassword string        `mapstructure:"redis-password"`
	RedisDB       int           `mapstructure:"redis-db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "vkinder is a VK community bot that finds a pair among friends of friends",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"vk.token":            "VK_TOKEN",
		"vk.user-token":       "VK_USER_TOKEN",
		"vk.group-id":         "GROUP_ID",
		"storage.dsn":         "DATABASE_DSN",
		"sessions.redis-addr": "REDIS_ADDR",
		"ai.gemini.api-key":   "GEMINI_API_KEY",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("storage.sqlite-path", app+".db")
	viper.SetDefault("storage.auto-migrate", true)
	viper.SetDefault("sessions.backend", "memory")
	viper.SetDefault("sessions.ttl", 24*time.Hour)
	viper.SetDefault("bot.search-limit", 100)
	viper.SetDefault("bot.photo-count", 3)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is vkinder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Version does not need any configuration.
	if versionCmd.CalledAs() != "" {
		return
	}

	// .env is optional and never overrides variables already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// A missing default config is fine, everything can come from the environment.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.VK == nil {
		config.VK = &VKConfig{}
	}
	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}
	if config.Sessions == nil {
		config.Sessions = &SessionsConfig{}
	}
	if config.Metrics == nil {
		config.Metrics = &MetricsConfig{}
	}
	config.Bot.Debug = config.Bot.Debug || viper.GetBool("debug")

	return config, nil
}
