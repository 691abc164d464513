package schema

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrNotFound  = errors.New("schema not found")
	ErrDuplicate = errors.New("schema already registered")
)

// Registry holds compiled definitions by key. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register compiles def and adds it to the registry.
func (r *Registry) Register(def Definition) error {
	if def.schema == nil {
		if err := def.Compile(); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, def.Key)
	}
	r.defs[def.Key] = def
	return nil
}

// Get returns a definition by key.
// Returns false if not found.
func (r *Registry) Get(key string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[key]
	return def, ok
}

// Lookup is Get with an error wrapping ErrNotFound.
func (r *Registry) Lookup(key string) (Definition, error) {
	def, ok := r.Get(key)
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return def, nil
}

// All returns all registered definitions.
// Sorted by group then by key for consistent ordering.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns the definitions of one group, sorted by key.
func (r *Registry) ByGroup(group string) []Definition {
	var result []Definition
	for _, def := range r.All() {
		if def.Group == group {
			result = append(result, def)
		}
	}
	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range r.defs {
		seen[def.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Count returns the number of registered definitions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// LoadDir parses every definition under dir and registers it.
// Returns the number of definitions added.
func (r *Registry) LoadDir(dir string) (int, error) {
	defs, err := ParseDir(dir)
	if err != nil {
		return 0, err
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return 0, err
		}
	}
	return len(defs), nil
}
