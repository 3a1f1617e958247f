// Package window holds recently received clink events for partner lookup.
package window

import (
	"context"
	"sync"
	"time"

	"github.com/okian/clink/internal/domain/model"
)

// InMemoryWindow is a process-local, time-ordered event window.
// Entries are kept in insertion order and pruned on insert.
type InMemoryWindow struct {
	mu        sync.Mutex
	events    []model.ShakeEvent
	seq       uint64
	retention time.Duration
	maxEvents int
}

// NewInMemoryWindow creates an empty window with a 5 second retention.
func NewInMemoryWindow(opts ...Option) *InMemoryWindow {
	w := &InMemoryWindow{
		retention: 5 * time.Second,
		maxEvents: 10000,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Insert appends ev, assigning its insertion sequence, and drops entries
// received more than the retention before ev.ReceivedAt.
func (w *InMemoryWindow) Insert(_ context.Context, ev model.ShakeEvent) (model.ShakeEvent, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	ev.Seq = w.seq
	w.pruneLocked(ev.ReceivedAt.Add(-w.retention))

	// hard cap: oldest go first
	if w.maxEvents > 0 && len(w.events) >= w.maxEvents {
		drop := len(w.events) - w.maxEvents + 1
		w.events = append(w.events[:0], w.events[drop:]...)
	}
	w.events = append(w.events, ev)
	return ev, nil
}

// FindPartner returns the most recently inserted event matching q.
func (w *InMemoryWindow) FindPartner(_ context.Context, q model.PartnerQuery) (model.ShakeEvent, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := len(w.events) - 1; i >= 0; i-- {
		if q.Matches(w.events[i]) {
			return w.events[i], true, nil
		}
	}
	return model.ShakeEvent{}, false, nil
}

// Len returns the number of retained events.
func (w *InMemoryWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

// Retention reports the configured retention horizon.
func (w *InMemoryWindow) Retention() time.Duration {
	return w.retention
}

func (w *InMemoryWindow) pruneLocked(cutoff time.Time) {
	i := 0
	for i < len(w.events) && w.events[i].ReceivedAt.Before(cutoff) {
		i++
	}
	if i == 0 {
		return
	}
	n := copy(w.events, w.events[i:])
	clear(w.events[n:])
	w.events = w.events[:n]
}
