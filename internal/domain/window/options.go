package window

import "time"

// Option configures an InMemoryWindow.
type Option func(*InMemoryWindow)

// WithRetention sets how long events stay eligible after they are received.
func WithRetention(d time.Duration) Option {
	return func(w *InMemoryWindow) {
		if d > 0 {
			w.retention = d
		}
	}
}

// WithMaxEvents caps the number of retained events.
// If n <= 0 the window is bounded by retention only.
func WithMaxEvents(n int) Option {
	return func(w *InMemoryWindow) {
		w.maxEvents = n
	}
}
