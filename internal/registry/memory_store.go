package registry

import "sync"

type MemoryStore struct {
	mu       sync.RWMutex
	attempts map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		attempts: make(map[string]int),
	}
}

func (st *MemoryStore) Increment(number string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.attempts[number]++
	return st.attempts[number]
}

func (st *MemoryStore) Count(number string) int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.attempts[number]
}

func (st *MemoryStore) Reset(number string) {
	st.mu.Lock()
	delete(st.attempts, number)
	st.mu.Unlock()
}

func (st *MemoryStore) All() map[string]int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]int, len(st.attempts))
	for k, v := range st.attempts {
		out[k] = v
	}
	return out
}

func (st *MemoryStore) Close() error {
	return nil
}
