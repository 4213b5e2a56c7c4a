package group

import "MultiView/view"

// Source looks views up by id and lists them all.
type Source interface {
	Get(id int) (view.View, bool)
	All() []view.View
}

// Resolver maps the active group onto live views. It is the only place that
// checks liveness; everything downstream trusts its output.
type Resolver struct {
	views  Source
	groups *Groups
}

// NewResolver returns a resolver over views and groups.
func NewResolver(views Source, groups *Groups) *Resolver {
	return &Resolver{views: views, groups: groups}
}

// Resolve returns the live members of the active group in member order. It
// returns an empty slice when no group is active or the group is empty.
func (r *Resolver) Resolve() []view.View {
	ids := r.groups.Members()
	out := make([]view.View, 0, len(ids))
	for _, id := range ids {
		v, ok := r.views.Get(id)
		if !ok {
			continue
		}
		out = append(out, v)
	}
	return Live(out)
}

// ResolveOrAll returns the synchronized views, or every live view when none
// are synchronized.
func (r *Resolver) ResolveOrAll() []view.View {
	if vs := r.Resolve(); len(vs) > 0 {
		return vs
	}
	return Live(r.views.All())
}

// Lookup returns the live views among ids.
func (r *Resolver) Lookup(ids []int) []view.View {
	out := make([]view.View, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.views.Get(id); ok {
			out = append(out, v)
		}
	}
	return Live(out)
}

// Live drops nil and destroyed views, keeping order.
func Live(vs []view.View) []view.View {
	out := make([]view.View, 0, len(vs))
	for _, v := range vs {
		if v == nil || !v.Alive() {
			continue
		}
		out = append(out, v)
	}
	return out
}
