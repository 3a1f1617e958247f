package simulator

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/pkg/logger"
)

// idStride spaces run prefixes so concurrent runs against one service do not
// share participant ids.
const idStride = 1_000_000

// generatePairs lays pairs out backwards from now, each pair at least twice
// the pair window away from its neighbours. B clinks a quarter window after A.
func generatePairs(ctx context.Context, config *Config, pairWindow time.Duration, now time.Time, stats *Stats) []Pair {
	logger.Get().Info(ctx, "generating pairs",
		logger.Int("pairs", config.Pairs),
		logger.Duration("pairWindow", pairWindow))

	base := int64(uuid.New().ID()) * idStride
	spacing := 2*pairWindow + pairGap
	offset := pairWindow / 4

	pairs := make([]Pair, config.Pairs)
	for i := range pairs {
		tsA := now.Add(-time.Duration(i) * spacing)
		tsB := tsA.Add(offset)
		if clock.DayKey(tsA) != clock.DayKey(tsB) {
			tsB = tsA
		}
		idA := base + int64(2*i) + 1
		idB := idA + 1
		pairs[i] = Pair{
			Index: i,
			A:     Member{ParticipantID: idA, DisplayHandle: "sim_" + strconv.FormatInt(idA, 10), ClientTS: tsA.UnixMilli()},
			B:     Member{ParticipantID: idB, DisplayHandle: "sim_" + strconv.FormatInt(idB, 10), ClientTS: tsB.UnixMilli()},
		}
	}

	stats.PairsGenerated = len(pairs)
	return pairs
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
