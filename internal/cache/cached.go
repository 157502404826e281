package cache

import "time"

// Cached wraps a value with the moment it was fetched. Expiry is a pure
// function of the wrapped timestamp.
type Cached[T any] struct {
	Timestamp time.Time `json:"timestamp"`
	Value     T         `json:"value"`
}

// NewCached wraps value with the given freshness marker.
func NewCached[T any](value T, at time.Time) Cached[T] {
	return Cached[T]{Timestamp: at, Value: value}
}

// Expired reports whether the entry is older than ttl at the given instant.
// An entry exactly ttl old is still fresh; only strictly older entries
// expire.
func (c Cached[T]) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(c.Timestamp) > ttl
}
