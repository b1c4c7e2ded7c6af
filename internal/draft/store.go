package draft

import "sync"

// Store is the single source of truth for the draft. All writes go through
// Update, which swaps in a complete new value under the lock.
type Store struct {
	mu      sync.Mutex
	draft   Draft
	subs    map[int]chan Draft
	nextSub int
}

// NewStore creates a store holding an initial draft
func NewStore(initial Draft) *Store {
	return &Store{
		draft: initial.Clone(),
		subs:  make(map[int]chan Draft),
	}
}

// Snapshot returns a copy of the current draft
func (s *Store) Snapshot() Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft.Clone()
}

// Update applies fn to a copy of the current draft and stores the result.
// fn must not call back into the store.
func (s *Store) Update(fn func(Draft) Draft) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.draft.Clone())
	s.draft = next.Clone()
	s.notify()
	return next
}

// TryUpdate is Update for mutations that can be rejected. On error the draft
// is left untouched and subscribers are not notified.
func (s *Store) TryUpdate(fn func(Draft) (Draft, error)) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.draft.Clone())
	if err != nil {
		return s.draft.Clone(), err
	}
	s.draft = next.Clone()
	s.notify()
	return next, nil
}

// Replace swaps in a whole new draft
func (s *Store) Replace(d Draft) {
	s.Update(func(Draft) Draft { return d })
}

// Subscribe returns a channel receiving the latest draft after each update.
// Slow readers only see the most recent value. Call the returned func to stop.
func (s *Store) Subscribe() (<-chan Draft, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Draft, 1)
	ch <- s.draft.Clone()
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

// notify must be called with mu held
func (s *Store) notify() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.draft.Clone():
		default:
		}
	}
}
