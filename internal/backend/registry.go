package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in picker policy names.
const (
	PolicyFirst = "first"
	PolicyExact = "exact"
)

// PolicyInfo describes a registered picker policy.
type PolicyInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type policy struct {
	picker      Picker
	description string
}

// Registry holds named capability picker policies.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]policy
}

// NewRegistry creates an empty policy registry.
func NewRegistry() *Registry {
	return &Registry{
		policies: make(map[string]policy),
	}
}

// NewDefaultRegistry registers the built-in policies over l.
func NewDefaultRegistry(l CapabilityLister) *Registry {
	r := NewRegistry()
	r.Register(PolicyFirst, "first online LLM capability", NewFirstPicker(l))
	r.Register(PolicyExact, "the requested model when online, else the first LLM capability", NewExactPicker(l))
	return r
}

// Register adds p under name, replacing any previous policy of that name.
func (r *Registry) Register(name, description string, p Picker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[name] = policy{picker: p, description: description}
}

// Resolve returns the picker registered under name.
func (r *Registry) Resolve(name string) (Picker, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[name]
	if !ok {
		return nil, fmt.Errorf("picker policy %q is not registered", name)
	}
	return p.picker, nil
}

// List returns every registered policy sorted by name.
func (r *Registry) List() []PolicyInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]PolicyInfo, 0, len(r.policies))
	for name, p := range r.policies {
		infos = append(infos, PolicyInfo{Name: name, Description: p.description})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}
