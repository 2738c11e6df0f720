// Package access limits what a caller sees and changes to the offices they
// are responsible for.
package access

import (
	"context"
	"fmt"
	"slices"

	"github.com/erazemk/evidenca/internal/model"
	"github.com/erazemk/evidenca/internal/store"
)

// Caller identifies who is making a request.
type Caller struct {
	UserID int64
	Role   string
}

// Scope is the set of offices a caller may act on.
type Scope struct {
	all bool
	ids map[int64]struct{}
}

// AllOffices is the unrestricted scope of a super admin.
func AllOffices() Scope {
	return Scope{all: true}
}

// Offices returns a scope covering exactly ids.
func Offices(ids ...int64) Scope {
	s := Scope{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool { return s.all }

// Empty reports whether the scope covers no office at all.
func (s Scope) Empty() bool { return !s.all && len(s.ids) == 0 }

// Contains reports whether the office is in scope.
func (s Scope) Contains(officeID int64) bool {
	if s.all {
		return true
	}
	_, ok := s.ids[officeID]
	return ok
}

// ContainsAny reports whether any of the offices is in scope.
func (s Scope) ContainsAny(officeIDs ...int64) bool {
	return slices.ContainsFunc(officeIDs, s.Contains)
}

// IDs returns the offices in scope in ascending order. It is nil for an
// unrestricted scope.
func (s Scope) IDs() []int64 {
	if s.all {
		return nil
	}
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Require fails with ErrForbidden unless every office is in scope.
func (s Scope) Require(officeIDs ...int64) error {
	for _, id := range officeIDs {
		if !s.Contains(id) {
			return fmt.Errorf("%w: office %d is outside your offices", model.ErrForbidden, id)
		}
	}
	return nil
}

// Resolve computes the scope of a caller. Super admins see every office.
// Everyone else sees their primary office, and admins also see the offices
// below it. A caller without a primary office gets an empty scope.
func Resolve(ctx context.Context, q store.Querier, c Caller) (Scope, error) {
	if c.Role == model.RoleSuperAdmin {
		return AllOffices(), nil
	}

	primary, err := store.PrimaryOffice(ctx, q, c.UserID)
	if err != nil {
		return Scope{}, err
	}
	if primary == nil {
		return Offices(), nil
	}

	tree, err := store.LoadHierarchy(ctx, q)
	if err != nil {
		return Scope{}, err
	}
	ids, err := tree.Accessible(*primary, model.RoleAtLeast(c.Role, model.RoleAdmin))
	if err != nil {
		return Scope{}, err
	}
	return Offices(ids...), nil
}

// filter keeps the rows that touch at least one office in scope.
func filter[T any](s Scope, rows []T, offices func(T) []int64) []T {
	if s.all {
		return rows
	}
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if s.ContainsAny(offices(row)...) {
			out = append(out, row)
		}
	}
	return out
}
