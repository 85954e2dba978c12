package main

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"taskbot/internal/cache"
	"taskbot/internal/repository"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Redis    cache.Config      `yaml:"redis"`
	Server   ServerConfig      `yaml:"server"`
	Engine   EngineConfig      `yaml:"engine"`

	TelegramAuth TelegramAuthConfig `yaml:"telegramAuth"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type TelegramAuthConfig struct {
	TelegramBotToken string        `yaml:"telegramBotToken"`
	Debug            bool          `yaml:"debug"`
	RequestTimeout   time.Duration `yaml:"requestTimeout"`
}

type EngineConfig struct {
	SettingsRefresh time.Duration `yaml:"settingsRefresh"`
	SweepInterval   time.Duration `yaml:"sweepInterval"`
	SweepLockTTL    time.Duration `yaml:"sweepLockTTL"`
}

// LoadConfig reads config.yaml with APP_ prefixed environment overrides, e.g.
// APP_DATABASE_PASSWORD. A .env file, when present, is loaded into the
// environment first.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8888")
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "json")
	viper.SetDefault("engine.settingsRefresh", time.Minute)
	viper.SetDefault("engine.sweepInterval", 24*time.Hour)
	viper.SetDefault("engine.sweepLockTTL", 10*time.Minute)
	viper.SetDefault("telegramAuth.requestTimeout", 10*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.TelegramAuth.TelegramBotToken == "" {
		return nil, errors.New("telegramAuth.telegramBotToken is required")
	}

	return &cfg, nil
}
