package tree

// ParentPair records the parents of a child relationship. Either side may be
// empty when the source has no such parent.
type ParentPair struct {
	Father string
	Mother string
}

// ChildEdge is a (father, mother, child) trio seen from one of the parents.
type ChildEdge struct {
	Father string
	Mother string
	Child  string
}

// SpouseEdge is a couple relationship seen from one of the partners.
type SpouseEdge struct {
	Person1        string
	Person2        string
	RelationshipID string
}

// FamilyKey identifies a family by its exact (father, mother) pair. Swapped
// roles are a different family.
type FamilyKey struct {
	Father string
	Mother string
}

// Key returns the family key of the pair.
func (p ParentPair) Key() FamilyKey { return FamilyKey(p) }

// Key returns the family key of the trio's parents.
func (e ChildEdge) Key() FamilyKey { return FamilyKey{Father: e.Father, Mother: e.Mother} }

// Key returns the family key of the couple.
func (e SpouseEdge) Key() FamilyKey { return FamilyKey{Father: e.Person1, Mother: e.Person2} }

// Set is an insertion-ordered set. Iteration order is the order of first
// insertion, which keeps family creation and output deterministic.
type Set[T comparable] struct {
	items []T
	index map[T]struct{}
}

// Add inserts v and reports whether it was not already present.
func (s *Set[T]) Add(v T) bool {
	if s.index == nil {
		s.index = make(map[T]struct{})
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// Has reports whether v is in the set.
func (s *Set[T]) Has(v T) bool {
	_, ok := s.index[v]
	return ok
}

// Len returns the number of elements.
func (s *Set[T]) Len() int {
	return len(s.items)
}

// Items returns the elements in insertion order. The slice must not be
// modified.
func (s *Set[T]) Items() []T {
	return s.items
}
