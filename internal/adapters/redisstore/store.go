// Package redisstore implements the clink stores on Redis so that several
// service instances can share pairing state.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/okian/clink/internal/domain/clock"
	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/metrics"
)

const (
	backendName = "redis"
	minMarkTTL  = time.Minute
)

// Store is a Redis-backed profile store, event window, pair ledger and score ledger.
type Store struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
	clock     clock.Clock
}

// ClientOptions are the connection settings for NewClient.
type ClientOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// NewClient opens a go-redis client. The connection is established lazily.
func NewClient(o ClientOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Username: o.Username,
		Password: o.Password,
		DB:       o.DB,
	})
}

// NewStore wraps client.
func NewStore(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client:    client,
		prefix:    "clink",
		retention: 5 * time.Second,
		clock:     clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return eris.Wrap(s.client.Ping(ctx).Err(), "redis ping")
}

// Close closes the underlying client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return eris.Wrap(err, "close redis client")
	}
	return nil
}

// UpsertProfile writes the non-empty fields of p and returns the stored profile.
func (s *Store) UpsertProfile(ctx context.Context, p model.Profile) (_ model.Profile, err error) {
	defer observe("upsert_profile", time.Now(), &err)

	key := s.profileKey(p.ParticipantID)
	fields := make([]any, 0, 4)
	if p.DisplayHandle != "" {
		fields = append(fields, fieldHandle, p.DisplayHandle)
	}
	if p.ContactTag != "" {
		fields = append(fields, fieldContact, p.ContactTag)
	}

	pipe := s.client.TxPipeline()
	if len(fields) > 0 {
		pipe.HSet(ctx, key, fields...)
	}
	all := pipe.HGetAll(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.Profile{}, eris.Wrap(err, "upsert profile")
	}
	return profileFromHash(p.ParticipantID, all.Val()), nil
}

// GetProfile returns the stored profile for id.
func (s *Store) GetProfile(ctx context.Context, id model.ParticipantID) (_ model.Profile, _ bool, err error) {
	defer observe("get_profile", time.Now(), &err)

	vals, err := s.client.HGetAll(ctx, s.profileKey(id)).Result()
	if err != nil {
		return model.Profile{}, false, eris.Wrap(err, "get profile")
	}
	if len(vals) == 0 {
		return model.Profile{}, false, nil
	}
	return profileFromHash(id, vals), true, nil
}

func profileFromHash(id model.ParticipantID, vals map[string]string) model.Profile {
	return model.Profile{
		ParticipantID: id,
		DisplayHandle: vals[fieldHandle],
		ContactTag:    vals[fieldContact],
	}
}

// Insert adds ev to the shared window and drops entries past the retention.
func (s *Store) Insert(ctx context.Context, ev model.ShakeEvent) (_ model.ShakeEvent, err error) {
	defer observe("window_insert", time.Now(), &err)

	seq, err := s.client.Incr(ctx, s.windowSeqKey()).Uint64()
	if err != nil {
		return model.ShakeEvent{}, eris.Wrap(err, "window sequence")
	}
	ev.Seq = seq

	member, err := json.Marshal(ev)
	if err != nil {
		return model.ShakeEvent{}, eris.Wrap(err, "encode event")
	}

	cutoff := ev.ReceivedAt.Add(-s.retention).UnixMilli()
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, s.windowKey(), redis.Z{Score: float64(ev.ReceivedAt.UnixMilli()), Member: string(member)})
	pipe.ZRemRangeByScore(ctx, s.windowKey(), "-inf", "("+strconv.FormatInt(cutoff, 10))
	pipe.PExpire(ctx, s.windowKey(), 2*s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return model.ShakeEvent{}, eris.Wrap(err, "window insert")
	}
	return ev, nil
}

// FindPartner returns the most recently inserted event matching q.
func (s *Store) FindPartner(ctx context.Context, q model.PartnerQuery) (_ model.ShakeEvent, _ bool, err error) {
	defer observe("window_find", time.Now(), &err)

	members, err := s.client.ZRangeByScore(ctx, s.windowKey(), &redis.ZRangeBy{
		Min: strconv.FormatInt(q.NotBefore.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return model.ShakeEvent{}, false, eris.Wrap(err, "window range")
	}

	var (
		best  model.ShakeEvent
		found bool
	)
	for _, m := range members {
		var ev model.ShakeEvent
		if err := json.Unmarshal([]byte(m), &ev); err != nil {
			// foreign member; skip
			continue
		}
		if !q.Matches(ev) {
			continue
		}
		if !found || ev.Seq > best.Seq {
			best, found = ev, true
		}
	}
	return best, found, nil
}

// WindowLen returns the number of events held in the shared window.
func (s *Store) WindowLen(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.windowKey()).Result()
	if err != nil {
		return 0, eris.Wrap(err, "window size")
	}
	return int(n), nil
}

// MarkIfAbsent sets the pair key with SET NX and a TTL reaching expiresAt.
func (s *Store) MarkIfAbsent(ctx context.Context, key model.PairKey, expiresAt time.Time) (_ bool, err error) {
	defer observe("mark_pair", time.Now(), &err)

	ttl := expiresAt.Sub(s.clock.Now())
	if ttl < minMarkTTL {
		ttl = minMarkTTL
	}
	ok, err := s.client.SetNX(ctx, s.pairKey(key), 1, ttl).Result()
	if err != nil {
		return false, eris.Wrap(err, "mark pair")
	}
	return ok, nil
}

// Unmark deletes the pair key.
func (s *Store) Unmark(ctx context.Context, key model.PairKey) (err error) {
	defer observe("unmark_pair", time.Now(), &err)
	return eris.Wrap(s.client.Del(ctx, s.pairKey(key)).Err(), "unmark pair")
}

// Increment adds delta to the participant's total.
func (s *Store) Increment(ctx context.Context, id model.ParticipantID, delta int64) (_ int64, err error) {
	defer observe("increment", time.Now(), &err)

	if delta <= 0 {
		return 0, eris.New("score increment must be positive")
	}
	total, err := s.client.ZIncrBy(ctx, s.scoresKey(), float64(delta), id.String()).Result()
	if err != nil {
		return 0, eris.Wrap(err, "increment score")
	}
	return int64(total), nil
}

// Score returns the participant's total, zero when absent.
func (s *Store) Score(ctx context.Context, id model.ParticipantID) (_ int64, err error) {
	defer observe("score", time.Now(), &err)

	total, err := s.client.ZScore(ctx, s.scoresKey(), id.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "score")
	}
	return int64(total), nil
}

// Rank returns one plus the number of participants with a strictly greater
// total, or zero when the participant has no entry.
func (s *Store) Rank(ctx context.Context, id model.ParticipantID) (_ int, err error) {
	defer observe("rank", time.Now(), &err)

	total, err := s.client.ZScore(ctx, s.scoresKey(), id.String()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "rank score")
	}
	above, err := s.client.ZCount(ctx, s.scoresKey(), "("+strconv.FormatInt(int64(total), 10), "+inf").Result()
	if err != nil {
		return 0, eris.Wrap(err, "rank")
	}
	return int(above) + 1, nil
}

// TopN returns the best n standings. Ties inside the page are ordered by id.
func (s *Store) TopN(ctx context.Context, n int) (_ []model.Standing, err error) {
	defer observe("top_n", time.Now(), &err)

	if n < 1 {
		return nil, eris.New("invalid leaderboard limit")
	}
	zs, err := s.client.ZRevRangeWithScores(ctx, s.scoresKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, eris.Wrap(err, "top n")
	}

	out := make([]model.Standing, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, model.Standing{ParticipantID: model.ParticipantID(id), Total: int64(z.Score)})
	}
	slices.SortStableFunc(out, func(a, b model.Standing) int {
		if a.Total != b.Total {
			if a.Total > b.Total {
				return -1
			}
			return 1
		}
		if a.ParticipantID < b.ParticipantID {
			return -1
		}
		if a.ParticipantID > b.ParticipantID {
			return 1
		}
		return 0
	})
	model.AssignRanks(out)
	return out, nil
}

// Count returns the number of participants with a total.
func (s *Store) Count(ctx context.Context) (_ int, err error) {
	defer observe("count", time.Now(), &err)

	n, err := s.client.ZCard(ctx, s.scoresKey()).Result()
	if err != nil {
		return 0, eris.Wrap(err, "count")
	}
	return int(n), nil
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveBackend(backendName, op, start, *err)
}
