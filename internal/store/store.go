// Package store implements the generic persisted record store backing
// nuggetcore: a string-keyed mapping to immutable value records with
// write-through durability, per-key serialization, and synchronous change
// notification. Derived grouped views live in view.go.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"nuggetcore/pkg/domain"
)

// Driver persists encoded records for a single namespace. Implementations
// must make Put durable before returning; the store treats a successful Put
// as the commit point for a write.
type Driver interface {
	Load(ctx context.Context) (map[string][]byte, error)
	Put(ctx context.Context, key string, payload []byte) error
	Delete(ctx context.Context, key string) error
}

// Listener receives committed change events. Listeners run synchronously
// while the written key's lock is held, so they must not write back to the
// key they were notified for. Writes to other keys (or other stores) are
// fine; that is how the pool maintainer works.
type Listener[V any] func(domain.Event[V])

type record[V any] struct {
	value V
	raw   []byte
}

type subscriber[V any] struct {
	id int
	fn Listener[V]
}

// Store is a persisted mapping from string key to a value record of type V.
// V must be a plain JSON-serializable value type; records are compared by
// their encoded form to suppress no-op writes.
type Store[V any] struct {
	kind   string
	driver Driver
	log    *zap.Logger

	mu      sync.RWMutex
	records map[string]record[V]

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	subMu  sync.RWMutex
	subs   []subscriber[V]
	nextID int

	viewMu sync.Mutex
	views  map[string]struct{}
}

// New hydrates a store from the driver's existing records. The store starts
// empty when the driver holds no prior data.
func New[V any](ctx context.Context, kind string, driver Driver, log *zap.Logger) (*Store[V], error) {
	if log == nil {
		log = zap.NewNop()
	}
	raw, err := driver.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s records: %w", kind, err)
	}
	records := make(map[string]record[V], len(raw))
	for key, payload := range raw {
		var value V
		if err := json.Unmarshal(payload, &value); err != nil {
			return nil, fmt.Errorf("decode %s record %q: %w", kind, key, err)
		}
		records[key] = record[V]{value: value, raw: payload}
	}
	return &Store[V]{
		kind:    kind,
		driver:  driver,
		log:     log,
		records: records,
		locks:   make(map[string]*sync.Mutex),
		views:   make(map[string]struct{}),
	}, nil
}

// Kind returns the entity namespace this store persists under.
func (s *Store[V]) Kind() string { return s.kind }

// Get returns the record for key from committed state.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		var zero V
		return zero, false
	}
	return rec.value, true
}

// Len reports the number of committed records.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a copy of all committed records keyed by id.
func (s *Store[V]) Snapshot() map[string]V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]V, len(s.records))
	for key, rec := range s.records {
		out[key] = rec.value
	}
	return out
}

// List returns all committed records in unspecified order.
func (s *Store[V]) List() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec.value)
	}
	return out
}

// Put creates or fully replaces the record under key. Writes that leave the
// encoded value unchanged are suppressed and fire no event.
func (s *Store[V]) Put(ctx context.Context, key string, value V) error {
	unlock := s.lockKey(key)
	defer unlock()
	_, err := s.commit(ctx, key, value)
	return err
}

// PutIfAbsent creates the record under key unless one exists. It returns the
// record now present and whether this call created it. This is the lazy
// creation primitive behind team auto-provisioning.
func (s *Store[V]) PutIfAbsent(ctx context.Context, key string, value V) (V, bool, error) {
	unlock := s.lockKey(key)
	defer unlock()
	if current, ok := s.current(key); ok {
		return current.value, false, nil
	}
	committed, err := s.commit(ctx, key, value)
	if err != nil {
		var zero V
		return zero, false, err
	}
	return committed, true, nil
}

// Modify atomically applies fn to the current record and commits the result.
// Concurrent Modify calls on the same key are serialized; calls on different
// keys proceed independently. Absent keys yield a domain.NotFoundError.
func (s *Store[V]) Modify(ctx context.Context, key string, fn func(V) V) (V, error) {
	unlock := s.lockKey(key)
	defer unlock()
	current, ok := s.current(key)
	if !ok {
		var zero V
		return zero, domain.NotFoundError{Kind: s.kind, Key: key}
	}
	return s.commit(ctx, key, fn(current.value))
}

// Delete removes the record under key. Absent keys yield a NotFoundError.
func (s *Store[V]) Delete(ctx context.Context, key string) error {
	unlock := s.lockKey(key)
	defer unlock()
	current, ok := s.current(key)
	if !ok {
		return domain.NotFoundError{Kind: s.kind, Key: key}
	}
	if err := s.driver.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s record %q: %w", s.kind, key, err)
	}
	s.mu.Lock()
	delete(s.records, key)
	s.mu.Unlock()
	var zero V
	s.emit(domain.Event[V]{Key: key, Action: domain.ActionDelete, Before: current.value, After: zero})
	return nil
}

// OnChange registers a listener for committed changes and returns its
// unsubscribe handle. Delivery is synchronous, exactly once per change, in
// commit order per key.
func (s *Store[V]) OnChange(fn Listener[V]) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber[V]{id: id, fn: fn})
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// commit encodes and durably writes value, updates committed state, and
// emits the change event. Caller must hold the key lock.
func (s *Store[V]) commit(ctx context.Context, key string, value V) (V, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("encode %s record %q: %w", s.kind, key, err)
	}
	previous, had := s.current(key)
	if had && bytes.Equal(previous.raw, raw) {
		// No-op write: keep the prior commit, skip persistence and events.
		return previous.value, nil
	}
	if err := s.driver.Put(ctx, key, raw); err != nil {
		var zero V
		return zero, fmt.Errorf("persist %s record %q: %w", s.kind, key, err)
	}
	s.mu.Lock()
	s.records[key] = record[V]{value: value, raw: raw}
	s.mu.Unlock()

	ev := domain.Event[V]{Key: key, Action: domain.ActionUpdate, Before: previous.value, After: value}
	if !had {
		ev.Action = domain.ActionCreate
	}
	s.emit(ev)
	return value, nil
}

func (s *Store[V]) current(key string) (record[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}

// lockKey acquires the serialization point for key. Locks are never
// discarded; the key space is small and records are never deleted in
// normal operation.
func (s *Store[V]) lockKey(key string) func() {
	s.lockMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.lockMu.Unlock()
	l.Lock()
	return l.Unlock
}

// emit delivers ev to every listener. A listener failure must not undo the
// committed write, so panics are recovered and logged instead of propagated.
func (s *Store[V]) emit(ev domain.Event[V]) {
	s.subMu.RLock()
	subs := make([]subscriber[V], len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()
	for _, sub := range subs {
		s.deliver(sub, ev)
	}
}

func (s *Store[V]) deliver(sub subscriber[V], ev domain.Event[V]) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("change listener panicked",
				zap.String("store", s.kind),
				zap.String("key", ev.Key),
				zap.Any("panic", r))
		}
	}()
	sub.fn(ev)
}

// registerView claims the named view slot, failing on duplicates.
func (s *Store[V]) registerView(name string) error {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if _, ok := s.views[name]; ok {
		return domain.DuplicateViewError{Kind: s.kind, Name: name}
	}
	s.views[name] = struct{}{}
	return nil
}

func (s *Store[V]) unregisterView(name string) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	delete(s.views, name)
}
