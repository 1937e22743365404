package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

type ServerConfig struct {
	PostgresDSN string `env:"POSTGRES_DSN"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	AdminAPIKey string `env:"ADMIN_API_KEY"`

	RevealDelay            time.Duration `env:"REVEAL_DELAY" envDefault:"5s"`
	DuplicateAdvanceWindow time.Duration `env:"DUPLICATE_ADVANCE_WINDOW" envDefault:"4s"`
	RecoveryPointLimit     int           `env:"RECOVERY_POINT_LIMIT" envDefault:"5"`
	EventBufferSize        int           `env:"EVENT_BUFFER_SIZE" envDefault:"500"`

	DefaultRebuyLimit int  `env:"DEFAULT_REBUY_LIMIT" envDefault:"3"`
	RunItTwiceEnabled bool `env:"RUN_IT_TWICE_ENABLED" envDefault:"true"`

	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`
	IdleTableTTL    time.Duration `env:"IDLE_TABLE_TTL" envDefault:"2h"`
	PreloadWindow   time.Duration `env:"PRELOAD_WINDOW" envDefault:"10m"`
}

func LoadServer() (ServerConfig, error) {
	var cfg ServerConfig
	err := env.Parse(&cfg)
	return cfg, err
}

// DurableStorage reports whether table state should be written to Postgres.
func (c ServerConfig) DurableStorage() bool {
	return c.PostgresDSN != ""
}
