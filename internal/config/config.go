package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required,notEmpty"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	OpenAIModel   string `env:"OPENAI_MODEL"`

	AssemblyAPIKey  string `env:"ASSEMBLY_API_KEY"`
	AssemblyBaseURL string `env:"ASSEMBLY_BASE_URL"  envDefault:"https://open.assembly.go.kr/portal/openapi"`
	AssemblyAge     int    `env:"ASSEMBLY_AGE"       envDefault:"22"`

	DocumentParseURL    string `env:"DOCUMENT_PARSE_URL"     envDefault:"https://api.upstage.ai/v1/document-digitization"`
	DocumentParseAPIKey string `env:"DOCUMENT_PARSE_API_KEY"`

	DBPath string `env:"DB_PATH" envDefault:"db.sqlite"`

	MaxChunkLength       int           `env:"MAX_CHUNK_LENGTH"       envDefault:"80000"`
	MapConcurrency       int           `env:"MAP_CONCURRENCY"        envDefault:"4"`
	DocumentConcurrency  int           `env:"DOCUMENT_CONCURRENCY"   envDefault:"2"`
	ModelRequestInterval time.Duration `env:"MODEL_REQUEST_INTERVAL" envDefault:"0s"`

	MeetingSchedule string `env:"MEETING_SCHEDULE" envDefault:"0 10,15,19 * * *"`
	BillSchedule    string `env:"BILL_SCHEDULE"    envDefault:"0 10,15,19 * * *"`

	RedisAddr string `env:"REDIS_ADDR"`

	TelegramToken  string `env:"TELEGRAM_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.MaxChunkLength <= 0 {
		return Config{}, fmt.Errorf("MAX_CHUNK_LENGTH must be positive, got %d", cfg.MaxChunkLength)
	}

	if cfg.MapConcurrency <= 0 {
		return Config{}, fmt.Errorf("MAP_CONCURRENCY must be positive, got %d", cfg.MapConcurrency)
	}

	if cfg.DocumentConcurrency <= 0 {
		return Config{}, fmt.Errorf("DOCUMENT_CONCURRENCY must be positive, got %d", cfg.DocumentConcurrency)
	}

	return cfg, nil
}

// TelegramEnabled reports whether meeting digests should be published.
func (c Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}
