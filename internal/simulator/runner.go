package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	outputPermission    = 0600
)

// Run executes the complete simulation against config.BaseURL.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{
		StartTime: time.Now(),
	}

	logger.Get().Info(ctx, "starting clink simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("pairs", config.Pairs),
		logger.Int("repeat", config.Repeat),
		logger.Int("workers", config.Workers),
		logger.String("timeout", config.Timeout.String()),
		logger.String("creditPolicy", string(config.CreditPolicy)),
		logger.Bool("verbose", config.Verbose))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Read the pair window the service pairs with
	var cc clientConfigReply
	if err := client.getJSON(ctx, "/client-config", &cc); err != nil {
		return fmt.Errorf("client config retrieval failed: %w", err)
	}
	pairWindow := time.Duration(cc.PairWindowMS) * time.Millisecond
	if span := time.Duration(config.Pairs) * (2*pairWindow + pairGap); span >= clock.MaxClientSkew {
		return fmt.Errorf("%d pairs span %s of client time, beyond the %s skew the service accepts",
			config.Pairs, span, clock.MaxClientSkew)
	}

	// Step 3: Generate pairs
	pairs := generatePairs(ctx, config, pairWindow, time.Now(), stats)

	// Step 4: Clink every pair, then replay
	submitPairs(ctx, config, client, pairs, stats)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("clink submission interrupted: %w", err)
	}

	// Step 5: Verify totals against the crediting policy
	verifyProgress(ctx, config, client, pairs, stats)

	// Step 6: Leaderboard ordering
	if err := checkLeaderboard(ctx, config, client, stats); err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}

	// Step 7: Save pairs to file
	if config.OutputFile != "" {
		if err := savePairsToFile(ctx, config.OutputFile, pairs); err != nil {
			logger.Get().Warn(ctx, "failed to save pairs to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, stats)

	if n := stats.violations(); n > 0 {
		return fmt.Errorf("%w: %d violations (failed=%d unpaired=%d double=%d repeat=%d totals=%d)",
			ErrVerification, n, stats.ClinksFailed, stats.UnpairedPairs,
			stats.DoubleAwards, stats.RepeatAwards, stats.TotalMismatches)
	}

	logger.Get().Info(ctx, "simulation completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient) error {
	logger.Get().Info(ctx, "checking service health")
	if err := client.getJSON(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("failed to reach service: %w", err)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// savePairsToFile writes the generated pairs as a JSON array.
func savePairsToFile(ctx context.Context, filename string, pairs []Pair) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(pairs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pairs: %w", err)
	}
	if err := os.WriteFile(filename, data, outputPermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	logger.Get().Info(ctx, "pairs saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final simulation statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, clinksPerSecond float64

	if stats.ClinksSent > 0 {
		successRate = float64(stats.ClinksSent-stats.ClinksFailed) / float64(stats.ClinksSent) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		clinksPerSecond = float64(stats.ClinksSent) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("pairsGenerated", stats.PairsGenerated),
		logger.Int("clinksSent", stats.ClinksSent),
		logger.Int("clinksFailed", stats.ClinksFailed),
		logger.Int("awarded", stats.Awarded),
		logger.Int("waiting", stats.Waiting),
		logger.Int("alreadyMatched", stats.AlreadyMatched),
		logger.Int("unpairedPairs", stats.UnpairedPairs),
		logger.Int("doubleAwards", stats.DoubleAwards),
		logger.Int("repeatAwards", stats.RepeatAwards),
		logger.Int("progressChecked", stats.ProgressChecked),
		logger.Int("totalMismatches", stats.TotalMismatches),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("clinksPerSecond", clinksPerSecond))
}
