// Package group keeps the synchronization groups and resolves the active
// group into the ordered list of live views macros dispatch to.
package group

import (
	"slices"
	"sync"
)

// DefaultID is the id of the group the shell creates at startup.
const DefaultID = "default"

// Group is a named, ordered set of view ids.
type Group struct {
	ID      string
	Name    string
	Members []int
	Active  bool
}

// Diff is the membership change produced by a resync.
type Diff struct {
	Joined []int
	Left   []int
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool { return len(d.Joined) == 0 && len(d.Left) == 0 }

// Groups holds the synchronization groups. At most one group is active.
type Groups struct {
	mu     sync.RWMutex
	groups []Group
}

// NewGroups returns an empty configuration.
func NewGroups() *Groups { return &Groups{} }

// InitDefault creates the active default group with members.
func (g *Groups) InitDefault(members []int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.groups = []Group{{
		ID:      DefaultID,
		Name:    "Default Group",
		Members: slices.Clone(members),
		Active:  len(members) > 0,
	}}
}

// Active returns a copy of the active group.
func (g *Groups) Active() (Group, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, grp := range g.groups {
		if grp.Active {
			grp.Members = slices.Clone(grp.Members)
			return grp, true
		}
	}
	return Group{}, false
}

// Members returns the active group's member ids.
func (g *Groups) Members() []int {
	grp, ok := g.Active()
	if !ok {
		return nil
	}
	return grp.Members
}

// Put adds or replaces a group. Activating it deactivates all others.
func (g *Groups) Put(grp Group) {
	g.mu.Lock()
	defer g.mu.Unlock()
	grp.Members = slices.Clone(grp.Members)
	if grp.Active {
		for i := range g.groups {
			g.groups[i].Active = false
		}
	}
	for i := range g.groups {
		if g.groups[i].ID == grp.ID {
			g.groups[i] = grp
			return
		}
	}
	g.groups = append(g.groups, grp)
}

// Activate marks the group with id active and returns false if it does not
// exist.
func (g *Groups) Activate(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	found := false
	for i := range g.groups {
		if g.groups[i].ID == id {
			found = true
		}
	}
	if !found {
		return false
	}
	for i := range g.groups {
		g.groups[i].Active = g.groups[i].ID == id
	}
	return true
}

// Synchronize replaces the default group's members with selected, makes it
// active and returns the change against the previously active members.
func (g *Groups) Synchronize(selected []int) Diff {
	prev := g.Members()
	next := dedupe(selected)
	g.Put(Group{ID: DefaultID, Name: "Default Group", Members: next, Active: true})
	return diff(prev, next)
}

func diff(prev, next []int) Diff {
	var d Diff
	for _, id := range next {
		if !slices.Contains(prev, id) {
			d.Joined = append(d.Joined, id)
		}
	}
	for _, id := range prev {
		if !slices.Contains(next, id) {
			d.Left = append(d.Left, id)
		}
	}
	return d
}

func dedupe(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
