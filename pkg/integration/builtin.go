package integration

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Shipped integrations register at PriorityDefault. A private build replaces
// one by importing a package that registers the same ID at PriorityOverride.
const (
	PriorityDefault  = 0
	PriorityOverride = 100
)

const defaultBuiltinOrder = 50

var (
	errNoBuiltinID      = errors.New("builtin has no id")
	errNoBuiltinFactory = errors.New("builtin has no factory")
)

// BuiltinInfo describes an integration compiled into the binary.
type BuiltinInfo struct {
	// ID must match the ID() of the integration the factory returns.
	ID          string
	Description string

	// Priority settles duplicate IDs. Equal priorities let the later
	// registration win.
	Priority int

	// Order is the construction position; zero means 50.
	Order int

	Factory Factory
}

type builtinEntry struct {
	info BuiltinInfo
	seq  int
}

// BuiltinRegistry maps integration IDs to their factories. The package-level
// instance is filled by init() in each integration package.
type BuiltinRegistry struct {
	mu      sync.RWMutex
	entries map[string]builtinEntry
	seq     int
}

func NewBuiltinRegistry() *BuiltinRegistry {
	return &BuiltinRegistry{entries: make(map[string]builtinEntry)}
}

// Register stores info, unless an entry with a higher priority already
// holds the ID.
func (r *BuiltinRegistry) Register(info BuiltinInfo) error {
	switch {
	case info.ID == "":
		return errNoBuiltinID
	case info.Factory == nil:
		return fmt.Errorf("%s: %w", info.ID, errNoBuiltinFactory)
	}
	if info.Order == 0 {
		info.Order = defaultBuiltinOrder
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, taken := r.entries[info.ID]
	if !taken {
		r.entries[info.ID] = builtinEntry{info: info, seq: r.seq}
		r.seq++
		return nil
	}

	log := zap.L().With(
		zap.String("id", info.ID),
		zap.Int("priority", info.Priority),
		zap.Int("held_priority", prev.info.Priority))
	if info.Priority < prev.info.Priority {
		log.Debug("Ignoring lower priority builtin")
		return nil
	}
	log.Info("Replacing builtin")
	prev.info = info
	r.entries[info.ID] = prev
	return nil
}

// Get returns a copy of the entry for id, or nil.
func (r *BuiltinRegistry) Get(id string) *BuiltinInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return &e.info
	}
	return nil
}

// List returns the builtins in construction order: by Order, ties by ID.
func (r *BuiltinRegistry) List() []BuiltinInfo {
	r.mu.RLock()
	out := make([]BuiltinInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.info)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b BuiltinInfo) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// IDs returns the registered IDs in first-registration order. A replaced
// entry keeps its original position.
func (r *BuiltinRegistry) IDs() []string {
	r.mu.RLock()
	entries := make([]builtinEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	slices.SortFunc(entries, func(a, b builtinEntry) int { return cmp.Compare(a.seq, b.seq) })
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.info.ID
	}
	return ids
}

var builtins = NewBuiltinRegistry()

// RegisterBuiltin adds info to the process-wide registry. Integration
// packages call it from init().
func RegisterBuiltin(info BuiltinInfo) error {
	return builtins.Register(info)
}

// Builtins lists the process-wide registry in construction order.
func Builtins() []BuiltinInfo {
	return builtins.List()
}
