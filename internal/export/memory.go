package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryObject struct {
	info Info
	data []byte
}

// memStore implements Store backed by process memory. Intended for tests.
type memStore struct {
	mu   sync.RWMutex
	objs map[string]memoryObject
}

// NewMemory returns an in-memory snapshot store.
func NewMemory() Store {
	return &memStore{objs: make(map[string]memoryObject)}
}

func (s *memStore) Driver() Driver { return DriverMemory }

func (s *memStore) Put(_ context.Context, key string, r io.Reader) (Info, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.objs[key]; exists {
		return Info{}, fmt.Errorf("snapshot %s: %w", key, ErrExists)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return Info{}, err
	}
	info := Info{Key: key, Size: int64(len(b)), LastModified: time.Now().UTC()}
	s.objs[key] = memoryObject{info: info, data: b}
	return info, nil
}

func (s *memStore) Get(_ context.Context, key string) (Info, io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return Info{}, nil, fmt.Errorf("snapshot %s not found", key)
	}
	data := append([]byte(nil), obj.data...)
	return obj.info, io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) List(_ context.Context, prefix string) ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Info, 0, len(s.objs))
	for k, v := range s.objs {
		if prefix == "" || strings.HasPrefix(k, prefix) {
			out = append(out, v.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *memStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	if ok {
		delete(s.objs, key)
	}
	return ok, nil
}
