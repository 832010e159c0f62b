// Package memory implements an in-memory record driver for tests and
// ephemeral deployments.
package memory

import (
	"context"
	"sync"
)

// Driver keeps records in process memory. Nothing survives a restart.
type Driver struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// New returns an empty in-memory record driver.
func New() *Driver {
	return &Driver{records: make(map[string][]byte)}
}

// Load returns a copy of the current records.
func (d *Driver) Load(_ context.Context) (map[string][]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string][]byte, len(d.records))
	for k, v := range d.records {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

// Put stores the payload under key.
func (d *Driver) Put(_ context.Context, key string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[key] = append([]byte(nil), payload...)
	return nil
}

// Delete removes the record under key.
func (d *Driver) Delete(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.records, key)
	return nil
}
