// Package catalog owns the live menu: the parsed menu file, the vocabulary
// derived from it and the compiled matcher automaton.
//
// The three are published together as one immutable [Snapshot] through an
// atomic pointer. Sessions capture a snapshot once when they start and use it
// for their whole lifetime, so a menu reload never changes the vocabulary
// under a running session. A reload that fails to parse or compile leaves the
// current snapshot in place.
package catalog

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/ordervox/internal/matcher"
	"github.com/MrWong99/ordervox/internal/observe"
	"github.com/MrWong99/ordervox/internal/vocab"
)

// ErrNotLoaded is returned by [Catalog.Ready] before any menu was loaded.
var ErrNotLoaded = errors.New("catalog: menu not loaded")

// Snapshot is one immutable generation of the menu.
type Snapshot struct {
	Menu       *vocab.MenuFile
	Vocabulary *vocab.Vocabulary
	Automaton  *matcher.Automaton

	// Version increases by one with every successful reload, starting at 1.
	Version  uint64
	LoadedAt time.Time

	hash [sha256.Size]byte
}

// Catalog publishes menu snapshots. All methods are safe for concurrent use.
type Catalog struct {
	path     string
	debounce time.Duration
	onChange []func(old, new *Snapshot)
	metrics  *observe.Metrics

	cur atomic.Pointer[Snapshot]

	// reloadMu serialises reloads so versions are assigned in order.
	reloadMu sync.Mutex
}

// Option configures a [Catalog].
type Option func(*Catalog)

// WithDebounce sets how long [Catalog.Watch] waits for file events to settle
// before reloading. The default is 250ms.
func WithDebounce(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithOnChange registers fn to be called after each successful reload that
// changed the menu. Callbacks run synchronously on the reloading goroutine.
func WithOnChange(fn func(old, new *Snapshot)) Option {
	return func(c *Catalog) {
		if fn != nil {
			c.onChange = append(c.onChange, fn)
		}
	}
}

// WithMetrics records every reload attempt to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// Open loads the menu at path and returns a catalog serving it. A menu that
// fails to load is a configuration error and aborts startup.
func Open(path string, opts ...Option) (*Catalog, error) {
	c := newCatalog(path, opts)
	if _, err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// FromMenu returns a catalog serving a fixed, already parsed menu. The
// catalog has no backing file; [Catalog.Reload] and [Catalog.Watch] are
// no-ops.
func FromMenu(m *vocab.MenuFile, opts ...Option) (*Catalog, error) {
	c := newCatalog("", opts)
	snap, err := compile(m)
	if err != nil {
		return nil, err
	}
	snap.Version = 1
	c.cur.Store(snap)
	return c, nil
}

func newCatalog(path string, opts []Option) *Catalog {
	c := &Catalog{path: path, debounce: 250 * time.Millisecond}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Path returns the menu file path, or "" for a fixed catalog.
func (c *Catalog) Path() string { return c.path }

// Snapshot returns the current menu generation. It never blocks and returns
// nil only if the catalog was never loaded.
func (c *Catalog) Snapshot() *Snapshot { return c.cur.Load() }

// Ready reports whether a menu is being served. It backs the readiness
// probe.
func (c *Catalog) Ready() error {
	if c.cur.Load() == nil {
		return ErrNotLoaded
	}
	return nil
}

// Reload re-reads the menu file. It reports whether a new snapshot was
// published: a file whose content is byte-identical to the current one is
// not recompiled. On error the current snapshot stays in place.
func (c *Catalog) Reload() (bool, error) {
	if c.path == "" {
		return false, nil
	}
	changed, err := c.reload()
	if c.metrics != nil {
		status := "ok"
		switch {
		case err != nil:
			status = "error"
		case !changed:
			status = "unchanged"
		}
		c.metrics.RecordMenuReload(context.Background(), status)
	}
	return changed, err
}

func (c *Catalog) reload() (bool, error) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return false, fmt.Errorf("catalog: read %q: %w", c.path, err)
	}
	hash := sha256.Sum256(data)

	old := c.cur.Load()
	if old != nil && old.hash == hash {
		return false, nil
	}

	menu, err := vocab.LoadMenuFromReader(bytes.NewReader(data))
	if err != nil {
		return false, fmt.Errorf("catalog: %q: %w", c.path, err)
	}
	snap, err := compile(menu)
	if err != nil {
		return false, fmt.Errorf("catalog: %q: %w", c.path, err)
	}
	snap.hash = hash
	snap.Version = 1
	if old != nil {
		snap.Version = old.Version + 1
	}
	c.cur.Store(snap)

	slog.Info("catalog: menu loaded",
		"path", c.path,
		"version", snap.Version,
		"items", snap.Vocabulary.Len(),
		"states", snap.Automaton.States(),
	)
	if old != nil {
		for _, fn := range c.onChange {
			fn(old, snap)
		}
	}
	return true, nil
}

func compile(m *vocab.MenuFile) (*Snapshot, error) {
	v, err := m.Vocabulary()
	if err != nil {
		return nil, err
	}
	a, err := matcher.Build(v)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Menu:       m,
		Vocabulary: v,
		Automaton:  a,
		LoadedAt:   time.Now(),
	}, nil
}
