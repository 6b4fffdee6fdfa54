package accounts

import (
	"github.com/odyssey-erp/gstbooks/internal/accounting/shared"
)

// Hierarchy is an id-indexed arena of one tenant's groups.
type Hierarchy struct {
	groups map[int64]Group
}

// NewHierarchy indexes groups by id.
func NewHierarchy(groups []Group) *Hierarchy {
	h := &Hierarchy{groups: make(map[int64]Group, len(groups))}
	for _, g := range groups {
		h.groups[g.ID] = g
	}
	return h
}

// Get returns the group with id.
func (h *Hierarchy) Get(id int64) (Group, bool) {
	g, ok := h.groups[id]
	return g, ok
}

// Len is the number of groups in the arena.
func (h *Hierarchy) Len() int {
	return len(h.groups)
}

// Ancestors returns the parent chain of id from nearest to root. The walk is
// bounded by the number of groups; exceeding it means the stored data loops.
func (h *Hierarchy) Ancestors(id int64) ([]int64, error) {
	g, ok := h.groups[id]
	if !ok {
		return nil, shared.NotFound("group", id)
	}
	var chain []int64
	for steps := 0; g.ParentID != nil; steps++ {
		if steps >= len(h.groups) {
			return nil, shared.Cycle(id, *g.ParentID)
		}
		parent, ok := h.groups[*g.ParentID]
		if !ok {
			return nil, shared.NotFound("group", *g.ParentID)
		}
		chain = append(chain, parent.ID)
		g = parent
	}
	return chain, nil
}

// Root returns the root ancestor of id (id itself when it has no parent).
func (h *Hierarchy) Root(id int64) (Group, error) {
	chain, err := h.Ancestors(id)
	if err != nil {
		return Group{}, err
	}
	if len(chain) == 0 {
		return h.groups[id], nil
	}
	return h.groups[chain[len(chain)-1]], nil
}

// EffectiveType is the type of the root ancestor.
func (h *Hierarchy) EffectiveType(id int64) (GroupType, error) {
	root, err := h.Root(id)
	if err != nil {
		return "", err
	}
	if root.Type == nil {
		return "", shared.Validation("root_type_missing", "root group %d has no type", root.ID)
	}
	return *root.Type, nil
}

// WouldCycle reports whether moving id under parentID makes id its own ancestor.
func (h *Hierarchy) WouldCycle(id, parentID int64) bool {
	if id == parentID {
		return true
	}
	chain, err := h.Ancestors(parentID)
	if err != nil {
		return true
	}
	for _, ancestor := range chain {
		if ancestor == id {
			return true
		}
	}
	return false
}

// Descendants returns every group below id.
func (h *Hierarchy) Descendants(id int64) []int64 {
	children := make(map[int64][]int64, len(h.groups))
	for _, g := range h.groups {
		if g.ParentID != nil {
			children[*g.ParentID] = append(children[*g.ParentID], g.ID)
		}
	}
	var out []int64
	queue := append([]int64(nil), children[id]...)
	seen := map[int64]bool{id: true}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, children[next]...)
	}
	return out
}
