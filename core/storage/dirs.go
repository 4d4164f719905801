// Package storage resolves where aura keeps its files. An explicit
// AURA_*_DIR override wins, then the matching XDG variable, then the
// platform default.
package storage

import (
	"os"
	"path/filepath"
	"sync"
)

// Dirs holds the four per-user roots.
type Dirs struct {
	Config string // settings and credentials
	Data   string // task archive, memory index
	Cache  string // regenerable cache
	State  string // logs and runtime state
}

// ProjectDirs locates the per-project configuration layer.
type ProjectDirs struct {
	Root   string // .aura/
	Config string // .aura/config.yaml, committed
	Local  string // .aura/local/, gitignored
}

var (
	resolveOnce sync.Once
	resolved    *Dirs
)

// ResolveDirs resolves the per-user roots once and caches the result for
// the process lifetime.
func ResolveDirs() *Dirs {
	resolveOnce.Do(func() {
		resolved = &Dirs{
			Config: lookupDir("AURA_CONFIG_DIR", "XDG_CONFIG_HOME", platformConfigDefault()),
			Data:   lookupDir("AURA_DATA_DIR", "XDG_DATA_HOME", platformDataDefault()),
			Cache:  lookupDir("AURA_CACHE_DIR", "XDG_CACHE_HOME", platformCacheDefault()),
			State:  lookupDir("AURA_STATE_DIR", "XDG_STATE_HOME", platformStateDefault()),
		}
	})
	return resolved
}

// lookupDir picks the first configured location. The aura-specific override
// is taken verbatim; an XDG base gets the app subdirectory appended.
func lookupDir(override, xdgVar, fallback string) string {
	if dir := os.Getenv(override); dir != "" {
		return dir
	}
	if dir := os.Getenv(xdgVar); dir != "" {
		return filepath.Join(dir, "aura")
	}
	return fallback
}

// ResolveProjectDirs locates the project layer under the given root.
func ResolveProjectDirs(projectRoot string) *ProjectDirs {
	root := filepath.Join(projectRoot, ".aura")
	return &ProjectDirs{
		Root:   root,
		Config: filepath.Join(root, "config.yaml"),
		Local:  filepath.Join(root, "local"),
	}
}

// ConfigDir returns a path under the config root.
func (d *Dirs) ConfigDir(parts ...string) string {
	return filepath.Join(append([]string{d.Config}, parts...)...)
}

// TaskDBPath is the durable task archive location.
func (d *Dirs) TaskDBPath() string {
	return filepath.Join(d.Data, "tasks.db")
}

// MemoryIndexPath is the interaction memory index location.
func (d *Dirs) MemoryIndexPath() string {
	return filepath.Join(d.Data, "memory.bleve")
}

// LogDir is where log files land.
func (d *Dirs) LogDir() string {
	return filepath.Join(d.State, "logs")
}

// EnsureAll creates the directory tree. The config root holds credentials,
// so it is restricted to the owner.
func (d *Dirs) EnsureAll() error {
	if err := os.MkdirAll(d.Config, 0700); err != nil {
		return err
	}
	for _, dir := range []string{d.Data, d.Cache, d.State, d.LogDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
