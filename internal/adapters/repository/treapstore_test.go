package repository

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/okian/clink/internal/domain/model"
)

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	if count, _ := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	total, err := store.Increment(ctx, 1001, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 {
		t.Errorf("expected total 1, got %d", total)
	}

	total, err = store.Increment(ctx, 1001, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 {
		t.Errorf("expected total 2, got %d", total)
	}

	if count, _ := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	score, _ := store.Score(ctx, 1001)
	if score != 2 {
		t.Errorf("expected score 2, got %d", score)
	}

	rank, _ := store.Rank(ctx, 1001)
	if rank != 1 {
		t.Errorf("expected rank 1, got %d", rank)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].ParticipantID != 1001 || entries[0].Total != 2 {
		t.Errorf("unexpected top entries: %+v", entries)
	}
}

func TestTreapStore_UnknownParticipant(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	score, err := store.Score(ctx, 42)
	if err != nil || score != 0 {
		t.Errorf("expected implicit zero, got %d (%v)", score, err)
	}
	rank, err := store.Rank(ctx, 42)
	if err != nil || rank != 0 {
		t.Errorf("expected no rank, got %d (%v)", rank, err)
	}
}

func TestTreapStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	if _, err := store.Increment(ctx, 1, 0); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := store.Increment(ctx, 1, -3); !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := store.TopN(ctx, 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
	if count, _ := store.Count(ctx); count != 0 {
		t.Errorf("rejected increments must not create entries, got %d", count)
	}
}

func TestTreapStore_CompetitionRanking(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	// totals: 30 -> 5, 10 -> 3, 20 -> 3, 40 -> 1
	for id, n := range map[model.ParticipantID]int{30: 5, 10: 3, 20: 3, 40: 1} {
		for i := 0; i < n; i++ {
			if _, err := store.Increment(ctx, id, 1); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
	}

	want := []model.Standing{
		{Rank: 1, ParticipantID: 30, Total: 5},
		{Rank: 2, ParticipantID: 10, Total: 3},
		{Rank: 2, ParticipantID: 20, Total: 3},
		{Rank: 4, ParticipantID: 40, Total: 1},
	}
	got, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %+v, got %+v", i, want[i], got[i])
		}
		rank, _ := store.Rank(ctx, want[i].ParticipantID)
		if rank != want[i].Rank {
			t.Errorf("Rank(%d): expected %d, got %d", want[i].ParticipantID, want[i].Rank, rank)
		}
	}

	top2, _ := store.TopN(ctx, 2)
	if len(top2) != 2 || top2[1].ParticipantID != 10 {
		t.Errorf("expected tie broken by id, got %+v", top2)
	}
}

func TestTreapStore_RankCorrectnessUnderRandomLoad(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()
	rng := rand.New(rand.NewSource(7))

	totals := make(map[model.ParticipantID]int64)
	for i := 0; i < 2000; i++ {
		id := model.ParticipantID(rng.Intn(300) + 1)
		delta := int64(rng.Intn(3) + 1)
		if _, err := store.Increment(ctx, id, delta); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		totals[id] += delta
	}

	expected := make([]model.Standing, 0, len(totals))
	for id, total := range totals {
		expected = append(expected, model.Standing{ParticipantID: id, Total: total})
	}
	sort.Slice(expected, func(i, j int) bool {
		if expected[i].Total != expected[j].Total {
			return expected[i].Total > expected[j].Total
		}
		return expected[i].ParticipantID < expected[j].ParticipantID
	})
	model.AssignRanks(expected)

	got, err := store.TopN(ctx, len(expected))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, expected[i], got[i])
		}
		rank, _ := store.Rank(ctx, expected[i].ParticipantID)
		if rank != expected[i].Rank {
			t.Fatalf("Rank(%d): expected %d, got %d", expected[i].ParticipantID, expected[i].Rank, rank)
		}
	}
}

func TestTreapStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				if _, err := store.Increment(ctx, model.ParticipantID(i%10+1), 1); err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				_, _ = store.Rank(ctx, model.ParticipantID(g%10+1))
			}
		}(g)
	}
	wg.Wait()

	var sum int64
	for id := model.ParticipantID(1); id <= 10; id++ {
		score, _ := store.Score(ctx, id)
		sum += score
	}
	if sum != goroutines*perGoroutine {
		t.Errorf("expected %d total increments, got %d", goroutines*perGoroutine, sum)
	}
}

func TestInMemoryProfiles(t *testing.T) {
	ctx := context.Background()
	profiles := NewInMemoryProfiles()

	if _, ok, _ := profiles.GetProfile(ctx, 1001); ok {
		t.Fatal("expected no profile")
	}

	p, err := profiles.UpsertProfile(ctx, model.Profile{ParticipantID: 1001, DisplayHandle: "alice", ContactTag: "@alice"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.DisplayHandle != "alice" || p.ContactTag != "@alice" {
		t.Errorf("unexpected profile: %+v", p)
	}

	// empty fields never erase
	p, _ = profiles.UpsertProfile(ctx, model.Profile{ParticipantID: 1001, DisplayHandle: "alice2"})
	if p.DisplayHandle != "alice2" || p.ContactTag != "@alice" {
		t.Errorf("unexpected merged profile: %+v", p)
	}

	got, ok, _ := profiles.GetProfile(ctx, 1001)
	if !ok || got != p {
		t.Errorf("expected stored profile %+v, got %+v", p, got)
	}
	if profiles.Count() != 1 {
		t.Errorf("expected 1 profile, got %d", profiles.Count())
	}
}

func BenchmarkTreapStore_Increment(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Increment(ctx, model.ParticipantID(i%100000+1), 1)
	}
}

func BenchmarkTreapStore_Rank(b *testing.B) {
	ctx := context.Background()
	store := NewTreapStore()
	for i := 0; i < 100000; i++ {
		_, _ = store.Increment(ctx, model.ParticipantID(i+1), int64(i%97+1))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = store.Rank(ctx, model.ParticipantID(i%100000+1))
	}
}
