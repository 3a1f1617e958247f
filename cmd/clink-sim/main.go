package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/clink/internal/domain/matchmaking"
	"github.com/okian/clink/internal/simulator"
)

// Default configuration constants.
const (
	defaultPairs       = 1000
	defaultRepeat      = 1
	defaultTopN        = 50
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		pairs      = flag.Int("pairs", defaultPairs, "Number of participant pairs")
		repeat     = flag.Int("repeat", defaultRepeat, "Extra rounds per pair that must not award again")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		topN       = flag.Int("top", defaultTopN, "Leaderboard entries to fetch and check")
		credit     = flag.String("credit", string(matchmaking.CreditBoth), "Crediting policy of the service: both or completer")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		outputFile = flag.String("output", "", "Write the generated pairs as JSON to this file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return 0
	}

	policy, err := matchmaking.ParseCreditPolicy(*credit)
	if err != nil {
		os.Stderr.WriteString("Invalid -credit: " + err.Error() + "\n")
		return 2
	}

	closeLog, err := simulator.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	config := &simulator.Config{
		BaseURL:      *baseURL,
		Pairs:        *pairs,
		Repeat:       *repeat,
		Workers:      *workers,
		TopN:         *topN,
		Timeout:      *timeout,
		CreditPolicy: policy,
		OutputFile:   *outputFile,
		LogFile:      *logFile,
		Verbose:      *verbose,
	}

	if err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return 1
	}
	return 0
}
