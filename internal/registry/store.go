// Package registry tracks reconnect attempts per phone number. The counters
// outlive individual sessions: a number that exhausted its attempts stays
// blocked until an external reset, even across a session teardown.
package registry

// AttemptStore is the reconnect-attempt counter backend. The memory store
// is the default; the Redis store keeps counters across process restarts.
type AttemptStore interface {
	// Increment bumps the counter for a number and returns the new value.
	Increment(number string) int
	// Count returns the current counter for a number (zero when unknown).
	Count(number string) int
	// Reset clears the counter for a number.
	Reset(number string)
	// All returns a snapshot of every non-zero counter.
	All() map[string]int
	Close() error
}
