package tree

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

func TestFetchPersonsDedupesAcrossCalls(t *testing.T) {
	svc := newStubService()
	svc.addPerson("A", "Ann", "Smith", gedcomx.GenderFemale)
	svc.addPerson("B", "Bob", "Smith", gedcomx.GenderMale)
	tr := New(svc, Options{})
	ctx := context.Background()

	assert.Equal(t, 2, tr.FetchPersons(ctx, []string{"A", "B", "A", "", "C"}))
	assert.Equal(t, 0, tr.FetchPersons(ctx, []string{"B", "A", "C"}))

	require.Len(t, svc.batches, 1)
	assert.Equal(t, []string{"A", "B", "C"}, svc.batches[0])
	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, 1, svc.requestCount(id), id)
	}
}

func TestFetchPersonsBatchesByPageSize(t *testing.T) {
	svc := newStubService()
	ids := []string{"P1", "P2", "P3", "P4", "P5"}
	for _, id := range ids {
		svc.addPerson(id, id, "X", gedcomx.GenderUnknown)
	}
	tr := New(svc, Options{PageSize: 2})

	assert.Equal(t, 5, tr.FetchPersons(context.Background(), ids))
	require.Len(t, svc.batches, 3)
	assert.Equal(t, []string{"P1", "P2"}, svc.batches[0])
	assert.Equal(t, []string{"P3", "P4"}, svc.batches[1])
	assert.Equal(t, []string{"P5"}, svc.batches[2])

	persons := tr.Persons()
	require.Len(t, persons, 5)
	for i, p := range persons {
		assert.Equal(t, ids[i], p.ID)
	}
}

func TestFetchPersonsClampsPageSize(t *testing.T) {
	tr := New(newStubService(), Options{PageSize: 1000})
	assert.Equal(t, gedcomx.MaxPersons, tr.opts.PageSize)
}

func TestFetchPersonsRetriesAbsentBatch(t *testing.T) {
	svc := newStubService()
	svc.addPerson("A", "Ann", "Smith", gedcomx.GenderFemale)
	svc.failNext = 1
	tr := New(svc, Options{})
	ctx := context.Background()

	assert.Equal(t, 0, tr.FetchPersons(ctx, []string{"A"}))
	_, ok := tr.Person("A")
	assert.False(t, ok)

	assert.Equal(t, 1, tr.FetchPersons(ctx, []string{"A"}))
	_, ok = tr.Person("A")
	assert.True(t, ok)
	assert.Equal(t, 2, svc.requestCount("A"))
}

func TestFetchPersonsEmptyPageDoesNotStopLaterBatches(t *testing.T) {
	svc := newStubService()
	svc.addPerson("P3", "C", "X", gedcomx.GenderMale)
	svc.failNext = 1
	tr := New(svc, Options{PageSize: 1})

	assert.Equal(t, 1, tr.FetchPersons(context.Background(), []string{"P1", "P2", "P3"}))
	assert.Len(t, svc.batches, 3)
}

func TestFetchPersonsHydratesConcurrently(t *testing.T) {
	svc := newStubService()
	var ids []string
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("P%03d", i)
		ids = append(ids, id)
		svc.addPerson(id, "Given"+id, "Family", gedcomx.GenderMale)
	}
	tr := New(svc, Options{Workers: 8, PageSize: 50})

	assert.Equal(t, 150, tr.FetchPersons(context.Background(), ids))
	for _, id := range ids {
		p, ok := tr.Person(id)
		require.True(t, ok, id)
		require.NotNil(t, p.Name, id)
		assert.Equal(t, "Given"+id, p.Name.Given)
		assert.Equal(t, GenderMale, p.Gender)
	}
}

func TestFetchPersonsRecordsEdges(t *testing.T) {
	svc := newStubService()
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("M", "Mary", "Roe", gedcomx.GenderFemale)
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addChild("F", "M", "C")
	svc.addCouple("R1", "F", "M")
	tr := New(svc, Options{})

	tr.FetchPersons(context.Background(), []string{"F", "M", "C"})

	c, _ := tr.Person("C")
	assert.Equal(t, []ParentPair{{Father: "F", Mother: "M"}}, c.ParentPairs.Items())
	f, _ := tr.Person("F")
	assert.Equal(t, []ChildEdge{{Father: "F", Mother: "M", Child: "C"}}, f.ChildEdges.Items())
	assert.Equal(t, []SpouseEdge{{Person1: "F", Person2: "M", RelationshipID: "R1"}}, f.SpouseEdges.Items())
	m, _ := tr.Person("M")
	assert.Equal(t, f.ChildEdges.Items(), m.ChildEdges.Items())
	assert.Equal(t, f.SpouseEdges.Items(), m.SpouseEdges.Items())
}

func TestResolveTrioIsIdempotent(t *testing.T) {
	svc := newStubService()
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	tr := New(svc, Options{})
	tr.FetchPersons(context.Background(), []string{"F", "C"})

	tr.ResolveTrio("F", "", "C")
	tr.ResolveTrio("F", "", "C")

	persons, families := tr.Len()
	assert.Equal(t, 2, persons)
	assert.Equal(t, 1, families)
	fam, ok := tr.Family(FamilyKey{Father: "F"})
	require.True(t, ok)
	assert.Equal(t, []string{"C"}, fam.Children.Items())
	f, _ := tr.Person("F")
	assert.Equal(t, 1, f.Unions.Len())
	c, _ := tr.Person("C")
	assert.Equal(t, 1, c.ChildOf.Len())
}

func TestResolveTrioNeedsAKnownParent(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	tr := New(svc, Options{})
	tr.FetchPersons(context.Background(), []string{"C"})

	tr.ResolveTrio("X", "Y", "C")

	_, families := tr.Len()
	assert.Zero(t, families)
	c, _ := tr.Person("C")
	assert.Zero(t, c.ChildOf.Len())
}

func TestExpandParentsWithOneParent(t *testing.T) {
	svc := newStubService()
	svc.addPerson("P1", "Paul", "Doe", gedcomx.GenderMale)
	svc.addPerson("P2", "Peter", "Doe", gedcomx.GenderMale)
	svc.addChild("P2", "", "P1")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"P1"})

	found := tr.ExpandParents(ctx, []string{"P1"})
	assert.Equal(t, []string{"P2"}, found)

	persons, families := tr.Len()
	assert.Equal(t, 2, persons)
	assert.Equal(t, 1, families)
	fam, ok := tr.Family(FamilyKey{Father: "P2"})
	require.True(t, ok)
	assert.Equal(t, []string{"P1"}, fam.Children.Items())

	tr.AssignOrdinals()
	p1, _ := tr.Person("P1")
	p2, _ := tr.Person("P2")
	assert.Equal(t, []int{fam.Ordinal}, p1.famcOrdinals)
	assert.Equal(t, []int{fam.Ordinal}, p2.famsOrdinals)
	assert.Equal(t, p2.Ordinal, fam.husbandOrdinal)
	assert.Zero(t, fam.wifeOrdinal)
}

func TestExpandParentsIsMonotonic(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("M", "Mary", "Roe", gedcomx.GenderFemale)
	svc.addChild("F", "M", "C")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"C"})

	assert.Equal(t, []string{"F", "M"}, tr.ExpandParents(ctx, []string{"C"}))
	batches := len(svc.batches)

	assert.Empty(t, tr.ExpandParents(ctx, []string{"C"}))
	assert.Len(t, svc.batches, batches)
	_, families := tr.Len()
	assert.Equal(t, 1, families)
}

func TestExpandParentsRetriesPendingParents(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("M", "Mary", "Roe", gedcomx.GenderFemale)
	svc.addChild("F", "M", "C")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"C"})

	svc.failNext = 1
	assert.Empty(t, tr.ExpandParents(ctx, []string{"C"}))
	_, families := tr.Len()
	assert.Zero(t, families)

	assert.Equal(t, 1, tr.PendingParents())

	assert.Equal(t, []string{"F", "M"}, tr.ExpandParents(ctx, nil))
	_, families = tr.Len()
	assert.Equal(t, 1, families)
	assert.Zero(t, tr.PendingParents())
}

func TestExpandParentsSkipsExpandedMembers(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("G", "George", "Doe", gedcomx.GenderMale)
	svc.addChild("F", "", "C")
	svc.addChild("G", "", "F")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"C", "F"})

	// F is both a seed and the father of the other seed.
	assert.Equal(t, []string{"F", "G"}, tr.ExpandParents(ctx, []string{"C", "F"}))
	batches := len(svc.batches)

	assert.Empty(t, tr.ExpandParents(ctx, []string{"F", "G"}))
	assert.Len(t, svc.batches, batches)
	assert.Contains(t, tr.expandedParents, "F")
	assert.Contains(t, tr.expandedParents, "G")
	assert.Zero(t, tr.PendingParents())
}

func TestUnanswered(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	tr := New(svc, Options{})
	ctx := context.Background()

	svc.failNext = 1
	tr.FetchPersons(ctx, []string{"C", "X"})
	assert.Equal(t, []string{"C", "X"}, tr.Unanswered([]string{"C", "X"}))

	tr.FetchPersons(ctx, []string{"C", "X"})
	assert.Empty(t, tr.Unanswered([]string{"C", "X", ""}))
}

func TestExpandParentsAcceptsDeletedParent(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addChild("F", "GONE", "C")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"C"})

	assert.Equal(t, []string{"F"}, tr.ExpandParents(ctx, []string{"C"}))
	fam, ok := tr.Family(FamilyKey{Father: "F", Mother: "GONE"})
	require.True(t, ok)
	assert.Equal(t, []string{"C"}, fam.Children.Items())
	assert.Empty(t, tr.pendingParents)

	tr.AssignOrdinals()
	assert.Zero(t, fam.wifeOrdinal)
}

func TestExpandParentsDropsPairWithNoKnownParent(t *testing.T) {
	svc := newStubService()
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addChild("GONE1", "GONE2", "C")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"C"})

	assert.Empty(t, tr.ExpandParents(ctx, []string{"C"}))
	_, families := tr.Len()
	assert.Zero(t, families)
	assert.Empty(t, tr.pendingParents)
}

func TestExpandParentsEmptyFrontierIsNoop(t *testing.T) {
	svc := newStubService()
	tr := New(svc, Options{})
	assert.Empty(t, tr.ExpandParents(context.Background(), nil))
	assert.Empty(t, tr.ExpandParents(context.Background(), []string{"UNKNOWN"}))
	assert.Empty(t, svc.batches)
}

func TestExpandChildrenSharesOneFamily(t *testing.T) {
	svc := newStubService()
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("M", "Mary", "Roe", gedcomx.GenderFemale)
	svc.addPerson("C1", "Carl", "Doe", gedcomx.GenderMale)
	svc.addPerson("C2", "Cora", "Doe", gedcomx.GenderFemale)
	svc.addChild("F", "M", "C1")
	svc.addChild("F", "M", "C2")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"F"})

	found := tr.ExpandChildren(ctx, []string{"F"})
	assert.Equal(t, []string{"C1", "C2"}, found)

	_, families := tr.Len()
	assert.Equal(t, 1, families)
	fam, ok := tr.Family(FamilyKey{Father: "F", Mother: "M"})
	require.True(t, ok)
	assert.Equal(t, []string{"C1", "C2"}, fam.Children.Items())

	assert.Empty(t, tr.ExpandChildren(ctx, []string{"F", "M"}))
}

func TestExpandChildrenRetriesPendingChild(t *testing.T) {
	svc := newStubService()
	svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
	svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
	svc.addChild("F", "", "C")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"F"})

	svc.failNext = 1
	assert.Empty(t, tr.ExpandChildren(ctx, []string{"F"}))
	assert.Contains(t, tr.pendingChildren, "F")
	assert.Equal(t, 1, tr.PendingChildren())

	assert.Equal(t, []string{"C"}, tr.ExpandChildren(ctx, nil))
	assert.Zero(t, tr.PendingChildren())
}

func TestExpandSpousesResolvesMarriageOnce(t *testing.T) {
	svc := newStubService()
	svc.addPerson("A", "Adam", "Doe", gedcomx.GenderMale)
	svc.addPerson("B", "Beth", "Roe", gedcomx.GenderFemale)
	svc.addCouple("R1", "A", "B",
		gedcomx.Fact{Type: gedcomx.FactMarriage, Date: &gedcomx.Date{Original: "1 May 1900"}},
		gedcomx.Fact{Type: "http://gedcomx.org/Divorce"})
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"A"})

	assert.Equal(t, 1, tr.ExpandSpouses(ctx, []string{"A"}))
	assert.Equal(t, 1, tr.ExpandSpouses(ctx, []string{"A", "B"}))

	fam, ok := tr.Family(FamilyKey{Father: "A", Mother: "B"})
	require.True(t, ok)
	assert.Equal(t, "R1", fam.RelationshipID)
	require.Len(t, fam.MarriageFacts, 1)
	assert.Equal(t, "1 May 1900", fam.MarriageFacts[0].Date)
	assert.Equal(t, 1, svc.coupleCalls["R1"])

	a, _ := tr.Person("A")
	b, _ := tr.Person("B")
	assert.True(t, a.Unions.Has(fam.Key))
	assert.True(t, b.Unions.Has(fam.Key))
}

func TestExpandSpousesLeavesDeletedPartnerUnresolved(t *testing.T) {
	svc := newStubService()
	svc.addPerson("A", "Adam", "Doe", gedcomx.GenderMale)
	svc.addCouple("R1", "A", "GONE")
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"A"})

	assert.Zero(t, tr.ExpandSpouses(ctx, []string{"A"}))
	_, families := tr.Len()
	assert.Zero(t, families)
	assert.Zero(t, svc.coupleCalls["R1"])
}

func TestExpandSpousesRunsFamiliesConcurrently(t *testing.T) {
	svc := newStubService()
	svc.addPerson("A", "Adam", "Doe", gedcomx.GenderMale)
	var frontier []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("S%02d", i)
		svc.addPerson(id, id, "X", gedcomx.GenderFemale)
		svc.addCouple("R"+id, "A", id, gedcomx.Fact{Type: gedcomx.FactMarriage})
		frontier = append(frontier, id)
	}
	tr := New(svc, Options{Workers: 4})
	ctx := context.Background()
	tr.FetchPersons(ctx, append(frontier, "A"))

	assert.Equal(t, 20, tr.ExpandSpouses(ctx, []string{"A"}))
	for _, id := range frontier {
		assert.Equal(t, 1, svc.coupleCalls["R"+id])
	}
	assert.LessOrEqual(t, svc.maxCouple, 4)

	a, _ := tr.Person("A")
	assert.Equal(t, 20, a.Unions.Len())
}

func TestAssignOrdinalsIsDeterministic(t *testing.T) {
	build := func() *Tree {
		svc := newStubService()
		svc.addPerson("C", "Carl", "Doe", gedcomx.GenderMale)
		svc.addPerson("F", "Frank", "Doe", gedcomx.GenderMale)
		svc.addPerson("M", "Mary", "Roe", gedcomx.GenderFemale)
		svc.addPerson("S", "Sam", "Doe", gedcomx.GenderMale)
		svc.addChild("F", "M", "C")
		svc.addChild("F", "M", "S")
		tr := New(svc, Options{})
		ctx := context.Background()
		tr.FetchPersons(ctx, []string{"C"})
		tr.ExpandParents(ctx, []string{"C"})
		tr.ExpandChildren(ctx, []string{"F", "M"})
		return tr
	}

	tr := build()
	tr.AssignOrdinals()
	first := ordinals(tr)
	tr.AssignOrdinals()
	assert.Equal(t, first, ordinals(tr))

	other := build()
	other.AssignOrdinals()
	assert.Equal(t, first, ordinals(other))
	assert.Equal(t, map[string]int{"C": 1, "F": 2, "M": 3, "S": 4}, first)

	fam, _ := tr.Family(FamilyKey{Father: "F", Mother: "M"})
	assert.Equal(t, []int{1, 4}, fam.childOrdinals)
}

func ordinals(tr *Tree) map[string]int {
	out := make(map[string]int)
	for _, p := range tr.Persons() {
		out[p.ID] = p.Ordinal
	}
	return out
}

func TestSerializeDocument(t *testing.T) {
	svc := newStubService()
	svc.addPerson("P1", "Paul", "Doe", gedcomx.GenderMale)
	svc.addPerson("P2", "Peter", "Doe", gedcomx.GenderMale)
	svc.addPerson("P3", "Anna", "Roe", gedcomx.GenderFemale)
	p1 := svc.persons["P1"]
	p1.Facts = []gedcomx.Fact{
		{Type: gedcomx.FactBirth, Date: &gedcomx.Date{Original: "2 March 1950"}, Place: &gedcomx.PlaceReference{Original: "Lyon"}},
		{Type: "http://gedcomx.org/Occupation", Value: "Baker"},
	}
	svc.persons["P1"] = p1
	svc.addChild("P2", "P3", "P1")
	svc.addCouple("R9", "P2", "P3", gedcomx.Fact{Type: gedcomx.FactMarriage, Place: &gedcomx.PlaceReference{Original: "Paris"}})

	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"P1"})
	tr.ExpandParents(ctx, []string{"P1"})
	tr.ExpandSpouses(ctx, []string{"P2", "P3"})

	var buf bytes.Buffer
	h := gedcom.Header{
		Source:    "getmyancestors",
		Version:   "1.0.0",
		Date:      time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Submitter: "Tester",
		Language:  "English",
	}
	require.NoError(t, tr.Serialize(&buf, h))

	hash, err := tr.ContentHash()
	require.NoError(t, err)

	want := "0 HEAD\n" +
		"1 CHAR UTF-8\n" +
		"1 GEDC\n" +
		"2 VERS 5.5.1\n" +
		"2 FORM LINEAGE-LINKED\n" +
		"1 SOUR getmyancestors\n" +
		"2 VERS 1.0.0\n" +
		"2 NAME getmyancestors\n" +
		"1 DATE 02 Jan 2024\n" +
		"2 TIME 03:04:05\n" +
		"1 NOTE content-hash: " + hash + "\n" +
		"1 SUBM @SUBM@\n" +
		"0 @SUBM@ SUBM\n" +
		"1 NAME Tester\n" +
		"1 LANG English\n" +
		"0 @I1@ INDI\n" +
		"1 NAME Paul /Doe/\n" +
		"1 SEX M\n" +
		"1 BIRT\n" +
		"2 DATE 2 March 1950\n" +
		"2 PLAC Lyon\n" +
		"1 FAMC @F1@\n" +
		"1 _FSFTID P1\n" +
		"0 @I2@ INDI\n" +
		"1 NAME Peter /Doe/\n" +
		"1 SEX M\n" +
		"1 FAMS @F1@\n" +
		"1 _FSFTID P2\n" +
		"0 @I3@ INDI\n" +
		"1 NAME Anna /Roe/\n" +
		"1 SEX F\n" +
		"1 FAMS @F1@\n" +
		"1 _FSFTID P3\n" +
		"0 @F1@ FAM\n" +
		"1 HUSB @I2@\n" +
		"1 WIFE @I3@\n" +
		"1 CHIL @I1@\n" +
		"1 MARR\n" +
		"2 PLAC Paris\n" +
		"1 _FSFTID R9\n" +
		"0 TRLR\n"
	assert.Equal(t, want, buf.String())
}

func TestContentHashTracksRecords(t *testing.T) {
	svc := newStubService()
	svc.addPerson("A", "Ann", "Smith", gedcomx.GenderFemale)
	svc.addPerson("B", "Bob", "Smith", gedcomx.GenderMale)
	tr := New(svc, Options{})
	ctx := context.Background()
	tr.FetchPersons(ctx, []string{"A"})

	before, err := tr.ContentHash()
	require.NoError(t, err)
	again, err := tr.ContentHash()
	require.NoError(t, err)
	assert.Equal(t, before, again)

	tr.FetchPersons(ctx, []string{"B"})
	after, err := tr.ContentHash()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}
