package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"holdem-server/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesToFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	prev := log.Logger
	defer func() { log.Logger = prev }()

	Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1})
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("global level = %v, want debug", zerolog.GlobalLevel())
	}
	tlog := ForTable("tbl_1")
	tlog.Info().Msg("hand started")

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(b), `"table_id":"tbl_1"`) {
		t.Fatalf("expected table_id field in %s", b)
	}
	if Writer() == nil {
		t.Fatal("expected non-nil writer")
	}
}

func TestInitFallsBackToInfoOnBadLevel(t *testing.T) {
	prev := log.Logger
	defer func() { log.Logger = prev }()

	Init(config.LogConfig{Level: "chatty"})
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("global level = %v, want info", zerolog.GlobalLevel())
	}
}
