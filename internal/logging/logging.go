/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, os.Stdout)
}

// SetupWithWriter configures zerolog to write to w. Production writes JSON,
// everything else writes human readable console lines.
func SetupWithWriter(environment string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if strings.EqualFold(environment, "development") {
		level = zerolog.DebugLevel
	}
	if override := os.Getenv("STOREHOURS_LOG_LEVEL"); override != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(override)); err == nil {
			level = parsed
		}
	}

	writer := w
	if !strings.EqualFold(environment, "production") {
		writer = zerolog.ConsoleWriter{Out: w, NoColor: w != os.Stdout}
	}

	logger := zerolog.New(writer).With().Timestamp().Str("service", "storehours").Logger().Level(level)
	log.Logger = logger
	return logger
}
