package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the SolMate bot.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Telegram TelegramConfig `mapstructure:"telegram" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Solana   SolanaConfig   `mapstructure:"solana" validate:"required"`
	Flipflop FlipflopConfig `mapstructure:"flipflop" validate:"required"`
	State    StateConfig    `mapstructure:"state"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Server   ServerConfig   `mapstructure:"server"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

type TelegramConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	WebhookURL  string        `mapstructure:"webhook_url"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     string `mapstructure:"port" validate:"required"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password" validate:"required"`
	Name     string `mapstructure:"name" validate:"required"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, sslMode,
	)
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SolanaConfig struct {
	MainnetRPC     string        `mapstructure:"mainnet_rpc" validate:"required,url"`
	DevnetRPC      string        `mapstructure:"devnet_rpc" validate:"required,url"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

type FlipflopConfig struct {
	BaseURL       string        `mapstructure:"base_url" validate:"required,url"`
	QueryTimeout  time.Duration `mapstructure:"query_timeout"`
	ActionTimeout time.Duration `mapstructure:"action_timeout"`
}

type StateConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	File     string `mapstructure:"file"`
	MaxSize  int    `mapstructure:"max_size"`
	MaxAge   int    `mapstructure:"max_age"`
	Backups  int    `mapstructure:"backups"`
	Compress bool   `mapstructure:"compress"`
}

type SentryConfig struct {
	DSN              string  `mapstructure:"dsn"`
	Environment      string  `mapstructure:"environment"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate"`
}

type ServerConfig struct {
	HTTPPort string `mapstructure:"http_port"`
}

type LimitsConfig struct {
	MessagesPerMinute  int `mapstructure:"messages_per_minute"`
	TransfersPerMinute int `mapstructure:"transfers_per_minute"`
}
