package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"holdem-server/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	sinkMu sync.RWMutex
	sink   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. Table components log through
// log.Logger (or a child of it carrying table_id), so this must run before
// the coordinator is built.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var output io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := newRotatingWriter(cfg.File, cfg.MaxMB)
		if err == nil {
			output = io.MultiWriter(os.Stdout, fw)
		}
	}
	setSink(output)
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the raw sink used by the global logger, for adapters such
// as the slog handler behind the HTTP request logger.
func Writer() io.Writer {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return sink
}

// ForTable returns a child logger tagged with the table id.
func ForTable(tableID string) zerolog.Logger {
	return log.With().Str("table_id", tableID).Logger()
}

func setSink(w io.Writer) {
	sinkMu.Lock()
	sink = w
	sinkMu.Unlock()
}
