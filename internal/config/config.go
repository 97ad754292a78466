package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DBSource    string `mapstructure:"DB_SOURCE"`
	Port        string `mapstructure:"SERVER_PORT"`
	Env         string `mapstructure:"ENVIRONMENT"`
	AutoMigrate bool   `mapstructure:"AUTO_MIGRATE"`

	JWTSecret       string `mapstructure:"JWT_SECRET"`
	TokenTTLMinutes int    `mapstructure:"TOKEN_TTL_MINUTES"`

	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`

	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	EventExchange string `mapstructure:"EVENT_EXCHANGE"`
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

// Load reads configuration from the environment, falling back to an optional
// .env file in path.
func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("AUTO_MIGRATE", true)
	viper.SetDefault("TOKEN_TTL_MINUTES", 60)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "buddyledger:rate_limit")
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("EVENT_EXCHANGE", "ledger_events")

	for _, key := range []string{
		"DB_SOURCE", "SERVER_PORT", "ENVIRONMENT", "AUTO_MIGRATE",
		"JWT_SECRET", "TOKEN_TTL_MINUTES",
		"REDIS_URL", "REDIS_RATE_LIMIT_PREFIX", "TRANSFER_RATE_LIMIT_PER_MINUTE",
		"RABBITMQ_URL", "EVENT_EXCHANGE",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.DBSource = strings.TrimSpace(cfg.DBSource)
	cfg.JWTSecret = strings.TrimSpace(cfg.JWTSecret)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.RabbitMQURL = strings.TrimSpace(cfg.RabbitMQURL)

	if cfg.DBSource == "" {
		return nil, errors.New("DB_SOURCE environment variable is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}
	if cfg.TokenTTLMinutes <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive token ttl; using default\" ttl_minutes=%d", cfg.TokenTTLMinutes)
		cfg.TokenTTLMinutes = 60
	}
	if cfg.TransferRateLimitPerMinute < 0 {
		cfg.TransferRateLimitPerMinute = 0
	}

	return &cfg, nil
}
