package store

import (
	"sort"
	"sync"

	"nuggetcore/pkg/domain"
)

// View maintains a live grouping of a store's records by a projected key,
// with each group ordered by a caller-supplied comparator. It is fed
// incrementally from the store's change feed and never recomputed per query.
type View[V any, K comparable] struct {
	store   *Store[V]
	name    string
	groupOf func(V) K
	less    func(a, b V) bool

	mu     sync.RWMutex
	groups map[K][]member[V]
	byKey  map[string]K

	cancel func()
}

type member[V any] struct {
	key   string
	value V
}

// NewView registers a grouped view on st. Only one view per name may exist
// on a store; a duplicate registration fails with DuplicateViewError before
// any state is built. Register views before the store is shared with
// writers so the seed cannot race concurrent commits.
func NewView[V any, K comparable](st *Store[V], name string, groupOf func(V) K, less func(a, b V) bool) (*View[V, K], error) {
	if err := st.registerView(name); err != nil {
		return nil, err
	}
	v := &View[V, K]{
		store:   st,
		name:    name,
		groupOf: groupOf,
		less:    less,
		groups:  make(map[K][]member[V]),
		byKey:   make(map[string]K),
	}
	v.cancel = st.OnChange(v.apply)
	for key, value := range st.Snapshot() {
		v.upsert(key, value)
	}
	return v, nil
}

// Name returns the view's registration name.
func (v *View[V, K]) Name() string { return v.name }

// MembersOf returns the group's records in comparator order. The result is
// a copy; subsequent calls observe later committed changes.
func (v *View[V, K]) MembersOf(group K) []V {
	v.mu.RLock()
	defer v.mu.RUnlock()
	members := v.groups[group]
	out := make([]V, len(members))
	for i, m := range members {
		out[i] = m.value
	}
	return out
}

// Groups returns the group keys that currently have members.
func (v *View[V, K]) Groups() []K {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]K, 0, len(v.groups))
	for k := range v.groups {
		out = append(out, k)
	}
	return out
}

// Close detaches the view from the store's change feed and releases its
// registration slot.
func (v *View[V, K]) Close() {
	v.cancel()
	v.store.unregisterView(v.name)
}

func (v *View[V, K]) apply(ev domain.Event[V]) {
	switch ev.Action {
	case domain.ActionDelete:
		v.mu.Lock()
		v.remove(ev.Key)
		v.mu.Unlock()
	default:
		v.upsert(ev.Key, ev.After)
	}
}

func (v *View[V, K]) upsert(key string, value V) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.remove(key)
	group := v.groupOf(value)
	members := v.groups[group]
	m := member[V]{key: key, value: value}
	at := sort.Search(len(members), func(i int) bool { return v.before(m, members[i]) })
	members = append(members, member[V]{})
	copy(members[at+1:], members[at:])
	members[at] = m
	v.groups[group] = members
	v.byKey[key] = group
}

// remove drops key from its current group. Caller holds the write lock.
func (v *View[V, K]) remove(key string) {
	group, ok := v.byKey[key]
	if !ok {
		return
	}
	members := v.groups[group]
	for i, m := range members {
		if m.key == key {
			members = append(members[:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(v.groups, group)
	} else {
		v.groups[group] = members
	}
	delete(v.byKey, key)
}

// before orders members by the comparator, breaking ties on key so equal
// values keep a stable order.
func (v *View[V, K]) before(a, b member[V]) bool {
	if v.less(a.value, b.value) {
		return true
	}
	if v.less(b.value, a.value) {
		return false
	}
	return a.key < b.key
}
