package simulator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/clink/internal/adapters/http/api"
	app "github.com/okian/clink/internal/app"
	"github.com/okian/clink/internal/config"
	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/internal/domain/matchmaking"
	"github.com/okian/clink/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// startService runs an in-memory clink service behind the HTTP API.
func startService(t *testing.T, credit string) *httptest.Server {
	t.Helper()
	ctx := context.Background()

	cfg := config.New(ctx)
	cfg.CreditPolicy = credit
	svc := app.New(app.WithConfig(cfg), app.WithLogger(logger.Nop()))
	if err := svc.Start(ctx); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)

	mux := http.NewServeMux()
	server := api.NewServer(svc, svc, api.Settings{
		MaxLeaderboardLimit: cfg.MaxLeaderboardLimit,
		PairWindow:          cfg.PairWindow(),
	})
	server.Register(ctx, mux)
	srv := httptest.NewServer(server.Wrap(mux))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string, policy matchmaking.CreditPolicy) *Config {
	return &Config{
		BaseURL:      baseURL,
		Pairs:        20,
		Repeat:       1,
		Workers:      4,
		TopN:         10,
		Timeout:      5 * time.Second,
		CreditPolicy: policy,
	}
}

func TestRun(t *testing.T) {
	convey.Convey("Given a service crediting both participants", t, func() {
		srv := startService(t, "both")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		convey.Convey("When the simulator expects both to be credited", func() {
			cfg := testConfig(srv.URL, matchmaking.CreditBoth)
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "pairs.json")
			err := Run(ctx, cfg)

			convey.Convey("Then every pair verifies", func() {
				convey.So(err, convey.ShouldBeNil)
				_, statErr := os.Stat(cfg.OutputFile)
				convey.So(statErr, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the simulator expects only the completer", func() {
			err := Run(ctx, testConfig(srv.URL, matchmaking.CreditCompleter))

			convey.Convey("Then the totals do not verify", func() {
				convey.So(errors.Is(err, ErrVerification), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the batch would reach back further than a day", func() {
			cfg := testConfig(srv.URL, matchmaking.CreditBoth)
			cfg.Pairs = 20000
			err := Run(ctx, cfg)

			convey.Convey("Then the run is refused before any clink is sent", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "skew the service accepts")
				convey.So(errors.Is(err, ErrVerification), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a service crediting only the completer", t, func() {
		srv := startService(t, "completer")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		convey.Convey("When the simulator runs with several repeats", func() {
			cfg := testConfig(srv.URL, matchmaking.CreditCompleter)
			cfg.Repeat = 3

			convey.Convey("Then no pair is awarded twice", func() {
				convey.So(Run(ctx, cfg), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given no service listening", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		convey.Convey("When the simulator starts", func() {
			err := Run(context.Background(), testConfig(url, matchmaking.CreditBoth))

			convey.Convey("Then the health check fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "health check failed")
			})
		})
	})
}

func TestSubmitAndVerify(t *testing.T) {
	convey.Convey("Given pairs clinked against a live service", t, func() {
		srv := startService(t, "both")
		ctx := context.Background()
		cfg := testConfig(srv.URL, matchmaking.CreditBoth)
		cfg.Pairs = 8
		cfg.Repeat = 2
		client := newHTTPClient(srv.URL, cfg.Timeout)
		stats := &Stats{}

		pairs := generatePairs(ctx, cfg, 2500*time.Millisecond, time.Now(), stats)
		submitPairs(ctx, cfg, client, pairs, stats)
		verifyProgress(ctx, cfg, client, pairs, stats)

		convey.Convey("Then each pair is awarded exactly once", func() {
			convey.So(stats.ClinksSent, convey.ShouldEqual, 8*2*3)
			convey.So(stats.ClinksFailed, convey.ShouldEqual, 0)
			convey.So(stats.Awarded, convey.ShouldEqual, 8)
			convey.So(stats.UnpairedPairs, convey.ShouldEqual, 0)
			convey.So(stats.DoubleAwards, convey.ShouldEqual, 0)
			convey.So(stats.RepeatAwards, convey.ShouldEqual, 0)
		})

		convey.Convey("And every progress total matches", func() {
			convey.So(stats.ProgressChecked, convey.ShouldEqual, 16)
			convey.So(stats.TotalMismatches, convey.ShouldEqual, 0)
		})

		convey.Convey("And the leaderboard is consistent", func() {
			convey.So(checkLeaderboard(ctx, cfg, client, stats), convey.ShouldBeNil)
			convey.So(stats.LeaderboardEntries, convey.ShouldEqual, 10)
		})
	})
}

func TestGeneratePairs(t *testing.T) {
	convey.Convey("Given a generated batch", t, func() {
		window := 2 * time.Second
		now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
		pairs := generatePairs(context.Background(), &Config{Pairs: 50}, window, now, &Stats{})

		convey.Convey("Then ids are unique", func() {
			seen := map[int64]bool{}
			for _, p := range pairs {
				seen[p.A.ParticipantID] = true
				seen[p.B.ParticipantID] = true
			}
			convey.So(len(seen), convey.ShouldEqual, 100)
		})

		convey.Convey("And members of a pair fall inside the window", func() {
			for _, p := range pairs {
				convey.So(p.B.ClientTS-p.A.ClientTS, convey.ShouldBeBetweenOrEqual, int64(0), window.Milliseconds())
			}
		})

		convey.Convey("And neighbouring pairs are out of reach of each other", func() {
			for i := 1; i < len(pairs); i++ {
				convey.So(pairs[i-1].A.ClientTS-pairs[i].B.ClientTS, convey.ShouldBeGreaterThan, window.Milliseconds())
			}
		})
	})

	convey.Convey("Given a pair that would straddle midnight", t, func() {
		now := time.Date(2024, 3, 10, 23, 59, 59, 900_000_000, time.UTC)
		pairs := generatePairs(context.Background(), &Config{Pairs: 1}, 2*time.Second, now, &Stats{})

		convey.Convey("Then both members stay on the same day", func() {
			a := clock.DayKey(time.UnixMilli(pairs[0].A.ClientTS))
			b := clock.DayKey(time.UnixMilli(pairs[0].B.ClientTS))
			convey.So(a, convey.ShouldEqual, b)
		})
	})
}

func TestExpectedTotals(t *testing.T) {
	cases := []struct {
		policy matchmaking.CreditPolicy
		a, b   int64
		want   bool
	}{
		{matchmaking.CreditBoth, 1, 1, true},
		{matchmaking.CreditBoth, 1, 0, false},
		{matchmaking.CreditBoth, 2, 2, false},
		{matchmaking.CreditCompleter, 1, 0, true},
		{matchmaking.CreditCompleter, 0, 1, true},
		{matchmaking.CreditCompleter, 1, 1, false},
		{matchmaking.CreditCompleter, 0, 0, false},
	}
	for _, c := range cases {
		if got := expectedTotals(c.policy, c.a, c.b); got != c.want {
			t.Errorf("expectedTotals(%s, %d, %d) = %v, want %v", c.policy, c.a, c.b, got, c.want)
		}
	}
}

func TestVerifyLeaderboardOrder(t *testing.T) {
	convey.Convey("Given leaderboard replies", t, func() {
		board := func(rows ...[2]int64) leaderboardReply {
			var r leaderboardReply
			for _, row := range rows {
				r.Entries = append(r.Entries, struct {
					Rank          int   `json:"rank"`
					ParticipantID int64 `json:"participant_id"`
					Total         int64 `json:"total"`
				}{Rank: int(row[0]), Total: row[1]})
			}
			return r
		}

		convey.Convey("Then competition ranking passes", func() {
			convey.So(verifyLeaderboardOrder(board([2]int64{1, 5}, [2]int64{1, 5}, [2]int64{3, 2})), convey.ShouldBeNil)
		})

		convey.Convey("And an unsorted board fails", func() {
			convey.So(verifyLeaderboardOrder(board([2]int64{1, 2}, [2]int64{2, 5})), convey.ShouldNotBeNil)
		})

		convey.Convey("And split ranks on a tie fail", func() {
			convey.So(verifyLeaderboardOrder(board([2]int64{1, 5}, [2]int64{2, 5})), convey.ShouldNotBeNil)
		})
	})
}
