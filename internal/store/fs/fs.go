// Package fs persists records as one JSON file per key under a namespace
// directory. Writes stream through a temp file and rename into place so a
// crash never leaves a half-written record.
package fs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const recordExt = ".json"

// Driver stores records under <root>/<namespace>/<key>.json.
type Driver struct {
	dir string
}

// New returns a filesystem record driver rooted at root/namespace, creating
// the directory if needed.
func New(root, namespace string) (*Driver, error) {
	if root == "" {
		root = "./nuggetdata"
	}
	if err := validNamespace(namespace); err != nil {
		return nil, err
	}
	dir := filepath.Join(root, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &Driver{dir: dir}, nil
}

// Load reads every record file in the namespace directory.
func (d *Driver) Load(_ context.Context) (map[string][]byte, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordExt) {
			continue
		}
		payload, err := os.ReadFile(filepath.Join(d.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		key := strings.TrimSuffix(entry.Name(), recordExt)
		out[key] = payload
	}
	return out, nil
}

// Put durably writes the record, replacing any prior contents atomically.
func (d *Driver) Put(_ context.Context, key string, payload []byte) error {
	path, err := d.pathFor(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes the record file. Missing files are not an error; the store
// has already checked existence under the key lock.
func (d *Driver) Delete(_ context.Context, key string) error {
	path, err := d.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// pathFor maps key to a file path, rejecting keys that would escape the
// namespace directory.
func (d *Driver) pathFor(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("empty key")
	}
	if strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid record key %q", key)
	}
	path := filepath.Join(d.dir, key+recordExt)
	if !strings.HasPrefix(path, d.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid record key %q", key)
	}
	return path, nil
}

func validNamespace(namespace string) error {
	if namespace == "" || !fs.ValidPath(namespace) || strings.Contains(namespace, "/") {
		return fmt.Errorf("invalid namespace %q", namespace)
	}
	return nil
}
