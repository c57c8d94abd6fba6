// Package logging configures the process-wide zerolog logger and hands out
// component-scoped child loggers.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the process-wide logger, set up by Initialize.
var Log zerolog.Logger

// Initialize configures the global logger. pretty selects a human-readable
// console writer for local development; otherwise JSON with unix timestamps,
// suitable for log aggregation in production.
func Initialize(level string, pretty bool) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	Log = log.With().Str("service", "auth-gateway").Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("logger initialized")
}

// Registry returns a logger scoped to the session registry.
func Registry() *zerolog.Logger {
	l := Log.With().Str("component", "registry").Logger()
	return &l
}

// Gateway returns a logger scoped to the request router.
func Gateway() *zerolog.Logger {
	l := Log.With().Str("component", "gateway").Logger()
	return &l
}

// Tunnel returns a logger scoped to the WebSocket tunnel.
func Tunnel() *zerolog.Logger {
	l := Log.With().Str("component", "tunnel").Logger()
	return &l
}

// Permissions returns a logger scoped to the permission client.
func Permissions() *zerolog.Logger {
	l := Log.With().Str("component", "permissions").Logger()
	return &l
}

// Forwarder returns a logger scoped to the generic forwarder.
func Forwarder() *zerolog.Logger {
	l := Log.With().Str("component", "forwarder").Logger()
	return &l
}
