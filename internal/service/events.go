package service

import "sync"

// UpdateBus fans "launch updated" events out to subscribers. The presentation
// layer subscribes to refresh its view when a milestone re-check detects a
// material change.
type UpdateBus struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewUpdateBus creates an empty bus.
func NewUpdateBus() *UpdateBus {
	return &UpdateBus{subs: make(map[chan string]struct{})}
}

// Subscribe returns a channel of updated launch ids and a cancel function.
// The channel is buffered; a subscriber that falls behind misses events
// rather than blocking the pipeline.
func (b *UpdateBus) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 16)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a launch id to every subscriber without blocking.
func (b *UpdateBus) Publish(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- id:
		default:
		}
	}
}
