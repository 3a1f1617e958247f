package simulator

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/okian/clink/internal/domain/matchmaking"
	"github.com/okian/clink/pkg/logger"
)

// expectedTotals reports whether the pair's totals satisfy the policy.
// Under CreditBoth each member has exactly one award. Under CreditCompleter
// exactly one member does.
func expectedTotals(policy matchmaking.CreditPolicy, a, b int64) bool {
	if policy == matchmaking.CreditCompleter {
		return a+b == 1 && (a == 0 || b == 0)
	}
	return a == 1 && b == 1
}

// verifyProgress reads /progress for both members of every pair.
func verifyProgress(ctx context.Context, config *Config, client *HTTPClient, pairs []Pair, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "verifying totals", logger.String("creditPolicy", string(config.CreditPolicy)))

	var checked, mismatched atomic.Int64
	forEachPair(ctx, config.Workers, pairs, func(p Pair) {
		var a, b progressReply
		errA := client.getJSON(ctx, "/progress/"+strconv.FormatInt(p.A.ParticipantID, 10), &a)
		errB := client.getJSON(ctx, "/progress/"+strconv.FormatInt(p.B.ParticipantID, 10), &b)
		checked.Add(2)

		if errA != nil || errB != nil {
			mismatched.Add(1)
			log.Warn(ctx, "progress lookup failed",
				logger.Int("pair", p.Index), logger.Any("errA", errA), logger.Any("errB", errB))
			return
		}
		if !expectedTotals(config.CreditPolicy, a.Total, b.Total) {
			mismatched.Add(1)
			log.Warn(ctx, "unexpected pair totals",
				logger.Int("pair", p.Index),
				logger.Int64("totalA", a.Total),
				logger.Int64("totalB", b.Total))
		}
	})

	stats.ProgressChecked = int(checked.Load())
	stats.TotalMismatches = int(mismatched.Load())
}

// checkLeaderboard fetches the top entries and checks their ordering.
// Inconsistencies are logged, not fatal.
func checkLeaderboard(ctx context.Context, config *Config, client *HTTPClient, stats *Stats) error {
	if config.TopN < 1 {
		return nil
	}
	var reply leaderboardReply
	if err := client.getJSON(ctx, "/leaderboard?limit="+strconv.Itoa(config.TopN), &reply); err != nil {
		return err
	}
	stats.LeaderboardEntries = len(reply.Entries)

	if err := verifyLeaderboardOrder(reply); err != nil {
		logger.Get().Warn(ctx, "leaderboard consistency warning", logger.Error(err))
		return nil
	}
	logger.Get().Info(ctx, "leaderboard consistency verified", logger.Int("entries", len(reply.Entries)))
	return nil
}

// verifyLeaderboardOrder checks totals never increase down the board and
// that equal totals share a rank.
func verifyLeaderboardOrder(reply leaderboardReply) error {
	for i := 1; i < len(reply.Entries); i++ {
		prev, cur := reply.Entries[i-1], reply.Entries[i]
		if cur.Total > prev.Total {
			return fmt.Errorf("leaderboard not sorted: entry %d has a higher total than entry %d", i, i-1)
		}
		if cur.Total == prev.Total && cur.Rank != prev.Rank {
			return fmt.Errorf("entries %d and %d tie on %d but rank %d and %d", i-1, i, cur.Total, prev.Rank, cur.Rank)
		}
		if cur.Total < prev.Total && cur.Rank <= prev.Rank {
			return fmt.Errorf("entry %d ranks %d, not below entry %d", i, cur.Rank, i-1)
		}
	}
	return nil
}
