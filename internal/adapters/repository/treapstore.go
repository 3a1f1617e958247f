package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/metrics"
)

// Treap-based, in-memory score ledger.
//
// Ordering: total DESC, then participant id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// leaderboard from best to worst. Nodes carry subtree sizes, which
// makes rank lookups O(log n) expected.

type node struct {
	id    model.ParticipantID
	score int64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore int64, aID model.ParticipantID, bScore int64, bID model.ParticipantID) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id model.ParticipantID, score int64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: rand.Uint64(), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id model.ParticipantID, score int64) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes hold a total strictly greater than score.
func countAbove(n *node, score int64) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit standings in rank order.
func collectTopN(n *node, limit int, out *[]model.Standing) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, model.Standing{ParticipantID: n.id, Total: n.score})
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// TreapStore keeps participant totals ordered for leaderboard reads.
type TreapStore struct {
	mu   sync.RWMutex
	root *node
	byID map[model.ParticipantID]int64
}

// NewTreapStore constructs an empty score ledger.
func NewTreapStore() *TreapStore {
	return &TreapStore{byID: make(map[model.ParticipantID]int64)}
}

// Increment adds delta to the participant's total and returns the new total.
func (s *TreapStore) Increment(_ context.Context, id model.ParticipantID, delta int64) (int64, error) {
	start := time.Now()
	if delta <= 0 {
		metrics.ObserveBackend("memory", "increment", start, ErrInvalidAmount)
		return 0, ErrInvalidAmount
	}

	s.mu.Lock()
	old, existed := s.byID[id]
	if existed {
		s.root = deleteNode(s.root, id, old)
	}
	total := old + delta
	s.byID[id] = total
	s.root = insert(s.root, id, total)
	count := len(s.byID)
	s.mu.Unlock()

	if !existed {
		metrics.UpdateParticipants(count)
	}
	metrics.ObserveBackend("memory", "increment", start, nil)
	return total, nil
}

// Score returns the participant's total, zero when absent.
func (s *TreapStore) Score(_ context.Context, id model.ParticipantID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id], nil
}

// Rank returns the competition rank of the participant: one plus the
// number of participants with a strictly greater total. Zero when the
// participant has no entry.
func (s *TreapStore) Rank(_ context.Context, id model.ParticipantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	score, ok := s.byID[id]
	if !ok {
		return 0, nil
	}
	return countAbove(s.root, score) + 1, nil
}

// TopN returns the best n standings; equal totals share a rank.
func (s *TreapStore) TopN(_ context.Context, n int) ([]model.Standing, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	out := make([]model.Standing, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &out)
	s.mu.RUnlock()

	model.AssignRanks(out)
	return out, nil
}

// Count returns the number of participants with a total.
func (s *TreapStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}
