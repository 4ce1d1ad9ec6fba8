package logging

import (
	"log/slog"
)

// SetupHookMode initializes logging for memoryd's hook-script commands.
// Every command writes exactly one JSON document to stdout, so nothing may
// share that stream:
// - Logs ONLY to file, never stdout or stderr (the rotating writer does
//   print one line to stderr if a log rotation fails)
// - JSON-structured, debug level for full diagnostics
//
// A stray log line ahead of the JSON document breaks the hook caller's
// parse, the same failure mode as interleaving log output into a JSON-RPC
// stream.
func SetupHookMode() (func(), error) {
	cfg := Config{
		Level:         "debug",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	slog.Info("hook-mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupHookModeWithLevel initializes hook-safe logging with a specific level.
func SetupHookModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
