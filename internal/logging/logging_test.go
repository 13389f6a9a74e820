/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)
	logger.Info().Str("merchant_id", "m1").Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line["merchant_id"] != "m1" || line["service"] != "storehours" {
		t.Errorf("unexpected fields: %v", line)
	}
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", logger.GetLevel())
	}
}

func TestDevelopmentIsDebugConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithWriter("development", &buf)
	logger.Debug().Msg("visible")

	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("debug line missing: %q", buf.String())
	}
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestLevelOverride(t *testing.T) {
	t.Setenv("STOREHOURS_LOG_LEVEL", "WARN")
	var buf bytes.Buffer
	logger := SetupWithWriter("production", &buf)
	logger.Info().Msg("hidden")

	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn, got %q", buf.String())
	}
}
