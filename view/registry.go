package view

import (
	"sort"
	"sync"
)

// Registry is the list of views the shell has provisioned. Tiles are added
// from UI and network goroutines, so access is locked.
type Registry struct {
	mu     sync.RWMutex
	views  map[int]View
	nextID int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{views: make(map[int]View)}
}

// NextID reserves an unused tile index.
func (r *Registry) NextID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id
}

// Add publishes v, replacing any view with the same id.
func (r *Registry) Add(v View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.ID()] = v
	if v.ID() >= r.nextID {
		r.nextID = v.ID() + 1
	}
}

// Remove forgets the view with id.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.views, id)
}

// Get looks a view up by id.
func (r *Registry) Get(id int) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[id]
	return v, ok
}

// All returns every registered view ordered by id. Destroyed views are
// included; callers filter through the group resolver.
func (r *Registry) All() []View {
	r.mu.RLock()
	out := make([]View, 0, len(r.views))
	for _, v := range r.views {
		out = append(out, v)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// IDs returns every registered id in order.
func (r *Registry) IDs() []int {
	all := r.All()
	ids := make([]int, len(all))
	for i, v := range all {
		ids[i] = v.ID()
	}
	return ids
}
