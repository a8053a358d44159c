package tree

import (
	"context"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type sideState int

const (
	sideKnown sideState = iota
	sideAbsent
	sidePending
)

// side classifies one parent id. An id is absent when it is empty or a
// successful batch did not return it, and pending when it has never been
// answered for.
func (t *Tree) side(id string) sideState {
	if id == "" {
		return sideAbsent
	}
	if _, ok := t.persons[id]; ok {
		return sideKnown
	}
	if _, ok := t.missing[id]; ok {
		return sideAbsent
	}
	return sidePending
}

// accepts reports whether a parent pair can become a family now, and
// whether it must be retried later.
func (t *Tree) accepts(father, mother string) (ok, pending bool) {
	fs, ms := t.side(father), t.side(mother)
	if fs == sidePending || ms == sidePending {
		return false, true
	}
	return fs == sideKnown || ms == sideKnown, false
}

// members returns the known frontier ids not yet in done plus the ids
// queued for retry, sorted. The retry queue is drained and every returned
// id is added to done. A nil done keeps every known frontier id.
func (t *Tree) members(frontier []string, retry, done map[string]struct{}) []string {
	set := make(map[string]struct{}, len(frontier)+len(retry))
	for _, id := range frontier {
		if _, ok := t.persons[id]; !ok {
			continue
		}
		if _, ok := done[id]; ok {
			continue
		}
		set[id] = struct{}{}
	}
	for id := range retry {
		set[id] = struct{}{}
		delete(retry, id)
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
		if done != nil {
			done[id] = struct{}{}
		}
	}
	sort.Strings(out)
	return out
}

// PendingParents returns the number of persons whose parents will be
// requested again by the next ExpandParents call.
func (t *Tree) PendingParents() int {
	return len(t.pendingParents)
}

// PendingChildren returns the number of persons whose children will be
// requested again by the next ExpandChildren call.
func (t *Tree) PendingChildren() int {
	return len(t.pendingChildren)
}

// Unanswered returns the ids of ids that are neither known nor reported
// missing by a successful batch, in input order.
func (t *Tree) Unanswered(ids []string) []string {
	var out []string
	for _, id := range ids {
		if t.side(id) == sidePending {
			out = append(out, id)
		}
	}
	return out
}

// ExpandParents runs one ascending generation from frontier. It fetches the
// parents named by the frontier's parent pairs, resolves every accepted
// trio, and returns the parent ids admitted for the first time, in
// discovery order. Frontier members already expanded are skipped. Members
// whose parents could not be fetched are retried on the next call.
func (t *Tree) ExpandParents(ctx context.Context, frontier []string) []string {
	ctx, span := t.tracer.Start(ctx, "tree.expand_parents")
	defer span.End()

	members := t.members(frontier, t.pendingParents, t.expandedParents)
	var ids []string
	for _, id := range members {
		for _, pair := range t.persons[id].ParentPairs.Items() {
			ids = append(ids, pair.Father, pair.Mother)
		}
	}
	t.FetchPersons(ctx, ids)

	var found []string
	for _, id := range members {
		for _, pair := range t.persons[id].ParentPairs.Items() {
			ok, pending := t.accepts(pair.Father, pair.Mother)
			if pending {
				t.pendingParents[id] = struct{}{}
				continue
			}
			if !ok {
				continue
			}
			t.ResolveTrio(pair.Father, pair.Mother, id)
			for _, parent := range []string{pair.Father, pair.Mother} {
				if t.side(parent) != sideKnown {
					continue
				}
				if _, done := t.reportedParents[parent]; done {
					continue
				}
				t.reportedParents[parent] = struct{}{}
				found = append(found, parent)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("frontier", len(members)),
		attribute.Int("found", len(found)),
		attribute.Int("pending", len(t.pendingParents)))
	if len(t.pendingParents) > 0 {
		t.log.Warn("parents left pending", zap.Int("persons", len(t.pendingParents)))
	}
	return found
}

// ExpandChildren runs one descending generation from frontier. A child is
// admitted when it was fetched and its parent pair is accepted. It returns
// the child ids admitted for the first time, in discovery order.
func (t *Tree) ExpandChildren(ctx context.Context, frontier []string) []string {
	ctx, span := t.tracer.Start(ctx, "tree.expand_children")
	defer span.End()

	members := t.members(frontier, t.pendingChildren, t.expandedChildren)
	var ids []string
	for _, id := range members {
		for _, e := range t.persons[id].ChildEdges.Items() {
			ids = append(ids, e.Father, e.Mother, e.Child)
		}
	}
	t.FetchPersons(ctx, ids)

	var found []string
	for _, id := range members {
		for _, e := range t.persons[id].ChildEdges.Items() {
			child := t.side(e.Child)
			ok, pending := t.accepts(e.Father, e.Mother)
			if child == sidePending || pending {
				t.pendingChildren[id] = struct{}{}
				continue
			}
			if child == sideAbsent || !ok {
				continue
			}
			t.ResolveTrio(e.Father, e.Mother, e.Child)
			if _, done := t.reportedChildren[e.Child]; done {
				continue
			}
			t.reportedChildren[e.Child] = struct{}{}
			found = append(found, e.Child)
		}
	}

	span.SetAttributes(
		attribute.Int("frontier", len(members)),
		attribute.Int("found", len(found)),
		attribute.Int("pending", len(t.pendingChildren)))
	if len(t.pendingChildren) > 0 {
		t.log.Warn("children left pending", zap.Int("persons", len(t.pendingChildren)))
	}
	return found
}

// ExpandSpouses fetches the partners of every frontier member, records each
// union whose two partners are known, and resolves the marriage of every
// such family. Marriage fetches run concurrently with at most one per
// family. It returns the number of families with a union recorded.
func (t *Tree) ExpandSpouses(ctx context.Context, frontier []string) int {
	ctx, span := t.tracer.Start(ctx, "tree.expand_spouses")
	defer span.End()

	members := t.members(frontier, nil, nil)
	var edges Set[SpouseEdge]
	var ids []string
	for _, id := range members {
		for _, e := range t.persons[id].SpouseEdges.Items() {
			if edges.Add(e) {
				ids = append(ids, e.Person1, e.Person2)
			}
		}
	}
	t.FetchPersons(ctx, ids)

	type marriage struct {
		family *Family
		relIDs []string
	}
	var order []FamilyKey
	byKey := make(map[FamilyKey]*marriage)
	for _, e := range edges.Items() {
		p1, ok1 := t.persons[e.Person1]
		p2, ok2 := t.persons[e.Person2]
		if !ok1 || !ok2 {
			t.log.Debug("couple left unresolved",
				zap.String("person1", e.Person1),
				zap.String("person2", e.Person2))
			continue
		}
		key := e.Key()
		p1.Unions.Add(key)
		p2.Unions.Add(key)
		m, ok := byKey[key]
		if !ok {
			m = &marriage{family: t.family(key)}
			byKey[key] = m
			order = append(order, key)
		}
		m.relIDs = append(m.relIDs, e.RelationshipID)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Workers)
	for _, key := range order {
		m := byKey[key]
		g.Go(func() error {
			for _, relID := range m.relIDs {
				if err := m.family.ResolveMarriage(gctx, relID, t.svc, t.facts); err != nil {
					t.log.Warn("marriage left unresolved", zap.String("relationship", relID), zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	span.SetAttributes(attribute.Int("families", len(order)))
	return len(order)
}
