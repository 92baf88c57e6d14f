package theme

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Prefs is a small persistent string store kept as a flat TOML file.
type Prefs struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// OpenPrefs reads path. A missing file yields an empty store; it is created on the first Set.
// An empty path keeps everything in memory.
func OpenPrefs(path string) (*Prefs, error) {
	p := &Prefs{path: path, values: map[string]string{}}
	if path == "" {
		return p, nil
	}
	if _, err := toml.DecodeFile(path, &p.values); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return p, nil
		}
		return nil, fmt.Errorf("read prefs %s: %w", path, err)
	}
	return p, nil
}

// MemoryPrefs is a store that is never written to disk.
func MemoryPrefs() *Prefs {
	p, _ := OpenPrefs("")
	return p
}

func (p *Prefs) Path() string { return p.path }

func (p *Prefs) Get(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	return v, ok
}

// Set stores value and rewrites the file.
func (p *Prefs) Set(key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	if p.path == "" {
		return nil
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(p.values); err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return os.Rename(tmp, p.path)
}
