package simulator

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/clink/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging initializes the logger on stdout, teeing into logFile when set.
// The returned close func releases the log file.
func SetupLogging(logFile string, verbose bool) (func() error, error) {
	closeFn := func() error { return nil }
	var w io.Writer = os.Stdout

	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
		if err != nil {
			return closeFn, fmt.Errorf("failed to open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, file)
		closeFn = file.Close
	}

	if err := logger.Init(logger.WithWriter(w)); err != nil {
		return closeFn, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return closeFn, nil
}

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`clink simulator
===============

Drives a running clink service with participant pairs and verifies the
awarded totals.

Usage:
  go run ./cmd/clink-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -pairs int
        Number of participant pairs (default 1000)
  -repeat int
        Extra rounds per pair that must not award again (default 1)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -top int
        Leaderboard entries to fetch and check (default 50)
  -credit string
        Crediting policy of the service: both or completer (default "both")
  -timeout duration
        HTTP request timeout (default 30s)
  -output string
        Write the generated pairs as JSON to this file
  -log string
        Also write logs to this file
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  # Simulate against a local service
  go run ./cmd/clink-sim

  # A larger run against a service crediting only the completer
  go run ./cmd/clink-sim -pairs 10000 -workers 32 -credit completer
`)
}
