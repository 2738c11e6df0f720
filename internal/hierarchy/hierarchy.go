// Package hierarchy indexes the office tree for access and parentage checks.
package hierarchy

import (
	"fmt"
	"slices"

	"github.com/erazemk/evidenca/internal/model"
)

// Tree is an adjacency index over a snapshot of all offices.
type Tree struct {
	offices  map[int64]model.Office
	children map[int64][]int64
	order    []int64
}

// New builds a tree from a flat office list. Children keep the order of the
// input list, so callers should pass offices sorted the way they want them
// listed.
func New(offices []model.Office) *Tree {
	t := &Tree{
		offices:  make(map[int64]model.Office, len(offices)),
		children: make(map[int64][]int64),
		order:    make([]int64, 0, len(offices)),
	}
	for _, o := range offices {
		t.offices[o.ID] = o
		t.order = append(t.order, o.ID)
		if o.ParentID != nil {
			t.children[*o.ParentID] = append(t.children[*o.ParentID], o.ID)
		}
	}
	return t
}

// Contains reports whether the office is part of the tree.
func (t *Tree) Contains(id int64) bool {
	_, ok := t.offices[id]
	return ok
}

// Office returns the office with the given ID.
func (t *Tree) Office(id int64) (model.Office, bool) {
	o, ok := t.offices[id]
	return o, ok
}

// All returns every office ID.
func (t *Tree) All() []int64 {
	return slices.Clone(t.order)
}

// Children returns the direct children of an office.
func (t *Tree) Children(id int64) []int64 {
	return slices.Clone(t.children[id])
}

// Descendants returns all offices below id, breadth first. The walk tracks
// visited offices, so a corrupt parent chain cannot loop forever.
func (t *Tree) Descendants(id int64) []int64 {
	var out []int64
	seen := map[int64]bool{id: true}
	queue := slices.Clone(t.children[id])

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		out = append(out, next)
		queue = append(queue, t.children[next]...)
	}
	return out
}

// Accessible returns the offices a user acting for officeID may see: only the
// office itself, or the office and all its descendants for administrators.
func (t *Tree) Accessible(officeID int64, isAdmin bool) ([]int64, error) {
	if !t.Contains(officeID) {
		return nil, fmt.Errorf("%w: office %d", model.ErrNotFound, officeID)
	}
	ids := []int64{officeID}
	if isAdmin {
		ids = append(ids, t.Descendants(officeID)...)
	}
	return ids, nil
}

// IsDirectParent reports whether parent is the immediate parent of child.
func (t *Tree) IsDirectParent(parent, child int64) (bool, error) {
	if !t.Contains(parent) {
		return false, fmt.Errorf("%w: office %d", model.ErrNotFound, parent)
	}
	c, ok := t.offices[child]
	if !ok {
		return false, fmt.Errorf("%w: office %d", model.ErrNotFound, child)
	}
	return c.ParentID != nil && *c.ParentID == parent, nil
}

// WouldCycle reports whether making parent the parent of id would close a
// loop, which is the case when parent is id itself or one of its descendants.
func (t *Tree) WouldCycle(id, parent int64) bool {
	if id == parent {
		return true
	}
	return slices.Contains(t.Descendants(id), parent)
}
