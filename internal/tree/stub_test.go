package tree

import (
	"context"
	"errors"
	"sync"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

// stubService serves persons and relationships from memory and records every
// request it sees.
type stubService struct {
	mu sync.Mutex

	persons   map[string]gedcomx.Person
	parents   []gedcomx.ChildAndParentsRelationship
	couples   []gedcomx.Relationship
	places    []gedcomx.PlaceDescription
	marriages map[string][]gedcomx.Fact

	// failNext makes the next n persons requests return an absent page.
	failNext int

	batches      [][]string
	requested    map[string]int
	coupleCalls  map[string]int
	activeCouple int
	maxCouple    int
}

func newStubService() *stubService {
	return &stubService{
		persons:     make(map[string]gedcomx.Person),
		marriages:   make(map[string][]gedcomx.Fact),
		requested:   make(map[string]int),
		coupleCalls: make(map[string]int),
	}
}

func (s *stubService) addPerson(id, given, surname, gender string) {
	s.persons[id] = gedcomx.Person{
		ID:     id,
		Gender: &gedcomx.Gender{Type: gender},
		Names: []gedcomx.Name{{
			Preferred: true,
			NameForms: []gedcomx.NameForm{{Parts: []gedcomx.NamePart{
				{Type: gedcomx.TypeGiven, Value: given},
				{Type: gedcomx.TypeSurname, Value: surname},
			}}},
		}},
	}
}

func (s *stubService) addChild(father, mother, child string) {
	s.parents = append(s.parents, gedcomx.ChildAndParentsRelationship{
		Parent1: ref(father),
		Parent2: ref(mother),
		Child:   ref(child),
	})
}

func (s *stubService) addCouple(relID, p1, p2 string, facts ...gedcomx.Fact) {
	s.couples = append(s.couples, gedcomx.Relationship{
		ID:      relID,
		Type:    gedcomx.RelationshipCouple,
		Person1: ref(p1),
		Person2: ref(p2),
	})
	s.marriages[relID] = facts
}

func ref(id string) *gedcomx.ResourceReference {
	if id == "" {
		return nil
	}
	return &gedcomx.ResourceReference{ResourceID: id}
}

func (s *stubService) FetchPersons(_ context.Context, ids []string) (*gedcomx.PersonsPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, append([]string(nil), ids...))
	for _, id := range ids {
		s.requested[id]++
	}
	if s.failNext > 0 {
		s.failNext--
		return nil, errors.New("service unavailable")
	}

	want := make(map[string]struct{}, len(ids))
	page := &gedcomx.PersonsPage{Places: s.places}
	for _, id := range ids {
		if p, ok := s.persons[id]; ok {
			page.Persons = append(page.Persons, p)
			want[id] = struct{}{}
		}
	}
	has := func(r *gedcomx.ResourceReference) bool {
		_, ok := want[r.ID()]
		return ok
	}
	for _, rel := range s.parents {
		if has(rel.Parent1) || has(rel.Parent2) || has(rel.Child) {
			page.ChildAndParentsRelationships = append(page.ChildAndParentsRelationships, rel)
		}
	}
	for _, rel := range s.couples {
		if has(rel.Person1) || has(rel.Person2) {
			page.Relationships = append(page.Relationships, rel)
		}
	}
	return page, nil
}

func (s *stubService) FetchCoupleRelationship(_ context.Context, id string) (*gedcomx.RelationshipsPage, error) {
	s.mu.Lock()
	s.coupleCalls[id]++
	s.activeCouple++
	if s.activeCouple > s.maxCouple {
		s.maxCouple = s.activeCouple
	}
	facts, ok := s.marriages[id]
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.activeCouple--
		s.mu.Unlock()
	}()

	if !ok {
		return nil, nil
	}
	return &gedcomx.RelationshipsPage{Relationships: []gedcomx.Relationship{{ID: id, Facts: facts}}}, nil
}

func (s *stubService) requestCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requested[id]
}
