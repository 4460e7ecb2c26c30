package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := setup(&buf, "info", "json"); err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	log.Info().Msg("scrape: fetched 12 races")
	log.Debug().Msg("hidden")

	out := buf.String()
	if !strings.Contains(out, `"message":"scrape: fetched 12 races"`) {
		t.Errorf("output = %q, want info message", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message written at info level: %q", out)
	}
}

func TestSetupInvalidLevel(t *testing.T) {
	if err := Setup("loud", "console"); err == nil {
		t.Error("Setup(loud) = nil, want error")
	}
}
