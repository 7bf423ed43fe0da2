package registry

import (
	"sort"
	"sync"
)

// Memory is a Registry backed by a map, safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{instances: make(map[string]*Instance)}
}

func (m *Memory) Contains(name string) bool {
	_, ok := m.Lookup(name)
	return ok
}

func (m *Memory) Get(name string) (*Instance, error) {
	inst, ok := m.Lookup(name)
	if !ok {
		return nil, ErrInstanceNotFound
	}
	return inst, nil
}

func (m *Memory) Lookup(name string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[name]
	return inst, ok
}

// List returns copies of every instance ordered by name.
func (m *Memory) List() []Instance {
	m.mu.RLock()
	out := make([]Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, *inst)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Add registers inst. The registry keeps its own copy.
func (m *Memory) Add(inst Instance) error {
	if inst.Name == "" || inst.App == nil {
		return ErrInvalidInstance
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.instances[inst.Name]; dup {
		return ErrDuplicate
	}
	m.instances[inst.Name] = &inst
	return nil
}

func (m *Memory) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[name]; !ok {
		return ErrInstanceNotFound
	}
	delete(m.instances, name)
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}
