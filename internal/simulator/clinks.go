package simulator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/clink/pkg/logger"
)

// Shake statuses returned by POST /shake.
const (
	statusWaiting        = "waiting"
	statusAwarded        = "awarded"
	statusAlreadyMatched = "already_matched"
)

type shakeCounters struct {
	sent, failed                    atomic.Int64
	waiting, awarded, matched       atomic.Int64
	unpaired, doubleAward, repeated atomic.Int64
}

func (c *shakeCounters) record(status string, err error) {
	c.sent.Add(1)
	if err != nil {
		c.failed.Add(1)
		return
	}
	switch status {
	case statusWaiting:
		c.waiting.Add(1)
	case statusAwarded:
		c.awarded.Add(1)
	case statusAlreadyMatched:
		c.matched.Add(1)
	}
}

// forEachPair runs fn over pairs on a bounded set of workers.
func forEachPair(ctx context.Context, workers int, pairs []Pair, fn func(Pair)) {
	workers = minInt(workers, len(pairs))
	if workers < 1 {
		return
	}

	pairChan := make(chan Pair, workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range pairChan {
				if ctx.Err() != nil {
					continue
				}
				fn(p)
			}
		}()
	}

feed:
	for _, p := range pairs {
		select {
		case <-ctx.Done():
			break feed
		case pairChan <- p:
		}
	}
	close(pairChan)
	wg.Wait()
}

// submitPairs fires both clinks of every pair at the same moment, then
// replays the pair config.Repeat times. Only the first round may award.
func submitPairs(ctx context.Context, config *Config, client *HTTPClient, pairs []Pair, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting clinks",
		logger.Int("pairs", len(pairs)),
		logger.Int("repeat", config.Repeat),
		logger.Int("workers", config.Workers))

	var c shakeCounters
	forEachPair(ctx, config.Workers, pairs, func(p Pair) {
		for round := 0; round <= config.Repeat; round++ {
			awards := clinkPair(ctx, client, p, &c)
			switch {
			case round > 0 && awards > 0:
				c.repeated.Add(1)
				log.Warn(ctx, "pair awarded again on the same day", logger.Int("pair", p.Index))
			case round == 0 && awards == 0:
				c.unpaired.Add(1)
				if config.Verbose {
					log.Warn(ctx, "pair was not matched", logger.Int("pair", p.Index))
				}
			case round == 0 && awards > 1:
				c.doubleAward.Add(1)
				log.Warn(ctx, "pair awarded twice", logger.Int("pair", p.Index))
			}
		}
	})

	stats.ClinksSent = int(c.sent.Load())
	stats.ClinksFailed = int(c.failed.Load())
	stats.Waiting = int(c.waiting.Load())
	stats.Awarded = int(c.awarded.Load())
	stats.AlreadyMatched = int(c.matched.Load())
	stats.UnpairedPairs = int(c.unpaired.Load())
	stats.DoubleAwards = int(c.doubleAward.Load())
	stats.RepeatAwards = int(c.repeated.Load())

	log.Info(ctx, "clink submission completed",
		logger.Int("awarded", stats.Awarded),
		logger.Int("alreadyMatched", stats.AlreadyMatched),
		logger.Int("waiting", stats.Waiting),
		logger.Int("failed", stats.ClinksFailed))
}

// clinkPair sends both members concurrently and returns how many were awarded.
func clinkPair(ctx context.Context, client *HTTPClient, p Pair, c *shakeCounters) int {
	var (
		wg     sync.WaitGroup
		awards atomic.Int64
	)
	for _, m := range []Member{p.A, p.B} {
		wg.Add(1)
		go func(m Member) {
			defer wg.Done()
			var reply shakeReply
			err := client.postJSON(ctx, "/shake", m, &reply)
			if err != nil {
				logger.Get().Debug(ctx, "clink failed",
					logger.Int64("participant", m.ParticipantID), logger.Error(err))
			}
			c.record(reply.Status, err)
			if err == nil && reply.Status == statusAwarded {
				awards.Add(1)
			}
		}(m)
	}
	wg.Wait()
	return int(awards.Load())
}
