package tablegateway

import (
	"time"

	"holdem-server/internal/config"
	"holdem-server/internal/reveal"
	"holdem-server/internal/tableguard"
)

// DefaultBuyInBigBlinds sizes the default stack and rebuy.
const DefaultBuyInBigBlinds = 100

type Config struct {
	RevealDelay            time.Duration
	DuplicateAdvanceWindow time.Duration
	RecoveryPointLimit     int
	EventBufferSize        int
	DefaultRebuyLimit      int
	RunItTwiceEnabled      bool
	IdleTableTTL           time.Duration
	SyncHistory            int
}

func DefaultConfig() Config {
	return Config{
		RevealDelay:            reveal.DefaultDelay,
		DuplicateAdvanceWindow: tableguard.DefaultDuplicateWindow,
		RecoveryPointLimit:     5,
		EventBufferSize:        500,
		DefaultRebuyLimit:      3,
		RunItTwiceEnabled:      true,
		IdleTableTTL:           2 * time.Hour,
		SyncHistory:            50,
	}
}

func ConfigFromServer(cfg config.ServerConfig) Config {
	out := DefaultConfig()
	out.RevealDelay = cfg.RevealDelay
	out.DuplicateAdvanceWindow = cfg.DuplicateAdvanceWindow
	out.RecoveryPointLimit = cfg.RecoveryPointLimit
	out.EventBufferSize = cfg.EventBufferSize
	out.DefaultRebuyLimit = cfg.DefaultRebuyLimit
	out.RunItTwiceEnabled = cfg.RunItTwiceEnabled
	out.IdleTableTTL = cfg.IdleTableTTL
	return out
}
