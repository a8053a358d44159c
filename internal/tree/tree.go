// Package tree assembles a family graph from person and relationship
// records fetched in batches, and serializes it as GEDCOM.
//
// A Tree is driven by a single control goroutine: fetches, expansion rounds,
// numbering and serialization run one after the other. Concurrency is used
// only inside a step (hydrating a batch, resolving marriages) and always
// joins before the step returns.
package tree

import (
	"context"
	"runtime"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
)

const tracerName = "github.com/AllTales-Labs/getmyancestors/internal/tree"

// Service is the remote record source. Either method may return a nil page,
// which means the response was absent; the error, when set, says why.
type Service interface {
	CoupleSource
	FetchPersons(ctx context.Context, ids []string) (*gedcomx.PersonsPage, error)
}

// Options configures a Tree.
type Options struct {
	// PageSize bounds the ids per persons request. Zero or values above
	// gedcomx.MaxPersons use gedcomx.MaxPersons.
	PageSize int
	// Workers bounds hydration and marriage parallelism. Zero uses
	// GOMAXPROCS.
	Workers int
	// Translator labels generic events. Nil keeps English labels.
	Translator Translator
	// Coordinates attaches place coordinates to facts.
	Coordinates bool
	Logger      *zap.Logger
}

// Tree owns every Person and Family of a run.
type Tree struct {
	svc    Service
	opts   Options
	log    *zap.Logger
	tracer trace.Tracer
	facts  FactParser

	persons     map[string]*Person
	personOrder []string
	families    map[FamilyKey]*Family
	familyOrder []FamilyKey
	places      map[string]Coordinates

	// missing holds ids a successful batch was asked for and did not return.
	missing map[string]struct{}

	pendingParents   map[string]struct{}
	pendingChildren  map[string]struct{}
	reportedParents  map[string]struct{}
	reportedChildren map[string]struct{}
	expandedParents  map[string]struct{}
	expandedChildren map[string]struct{}
}

// New returns an empty tree fetching from svc.
func New(svc Service, opts Options) *Tree {
	if opts.PageSize <= 0 || opts.PageSize > gedcomx.MaxPersons {
		opts.PageSize = gedcomx.MaxPersons
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	t := &Tree{
		svc:              svc,
		opts:             opts,
		log:              log,
		tracer:           otel.Tracer(tracerName),
		persons:          make(map[string]*Person),
		families:         make(map[FamilyKey]*Family),
		places:           make(map[string]Coordinates),
		missing:          make(map[string]struct{}),
		pendingParents:   make(map[string]struct{}),
		pendingChildren:  make(map[string]struct{}),
		reportedParents:  make(map[string]struct{}),
		reportedChildren: make(map[string]struct{}),
		expandedParents:  make(map[string]struct{}),
		expandedChildren: make(map[string]struct{}),
	}
	t.facts = FactParser{Translator: opts.Translator}
	if opts.Coordinates {
		t.facts.Places = t.places
	}
	return t
}

// Person returns the person with id.
func (t *Tree) Person(id string) (*Person, bool) {
	p, ok := t.persons[id]
	return p, ok
}

// Family returns the family for key.
func (t *Tree) Family(key FamilyKey) (*Family, bool) {
	f, ok := t.families[key]
	return f, ok
}

// Persons returns every person in creation order.
func (t *Tree) Persons() []*Person {
	out := make([]*Person, 0, len(t.personOrder))
	for _, id := range t.personOrder {
		out = append(out, t.persons[id])
	}
	return out
}

// Len returns the number of persons and families.
func (t *Tree) Len() (persons, families int) {
	return len(t.persons), len(t.families)
}

// FetchPersons fetches every id not yet known, in batches of the configured
// page size, and merges each batch before requesting the next. Ids an
// earlier successful batch did not return are not requested again. It
// returns the number of persons created.
func (t *Tree) FetchPersons(ctx context.Context, ids []string) int {
	todo := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := t.persons[id]; ok {
			continue
		}
		if _, ok := t.missing[id]; ok {
			continue
		}
		todo = append(todo, id)
	}

	created := 0
	for start := 0; start < len(todo); start += t.opts.PageSize {
		batch := todo[start:min(start+t.opts.PageSize, len(todo))]
		created += t.fetchBatch(ctx, batch)
	}
	return created
}

func (t *Tree) fetchBatch(ctx context.Context, batch []string) int {
	ctx, span := t.tracer.Start(ctx, "tree.fetch_batch",
		trace.WithAttributes(attribute.Int("ids", len(batch))))
	defer span.End()

	page, err := t.svc.FetchPersons(ctx, batch)
	if err != nil {
		t.log.Warn("persons batch failed", zap.Int("ids", len(batch)), zap.Error(err))
	}
	if page == nil {
		t.log.Debug("persons batch absent", zap.Int("ids", len(batch)))
		return 0
	}

	t.mergePlaces(page.Places)

	jobs := make([]hydrateJob, 0, len(page.Persons))
	for _, rec := range page.Persons {
		if rec.ID == "" {
			continue
		}
		if _, ok := t.persons[rec.ID]; ok {
			continue
		}
		p := NewPerson(rec.ID)
		t.persons[rec.ID] = p
		t.personOrder = append(t.personOrder, rec.ID)
		jobs = append(jobs, hydrateJob{person: p, record: rec})
	}
	t.hydrate(jobs)

	for _, id := range batch {
		if _, ok := t.persons[id]; !ok {
			t.missing[id] = struct{}{}
		}
	}

	t.linkChildAndParents(page.ChildAndParentsRelationships)
	t.linkCouples(page.Relationships)

	span.SetAttributes(attribute.Int("persons", len(jobs)))
	t.log.Debug("persons batch merged",
		zap.Int("ids", len(batch)),
		zap.Int("persons", len(jobs)),
		zap.Int("total", len(t.persons)))
	return len(jobs)
}

func (t *Tree) mergePlaces(places []gedcomx.PlaceDescription) {
	for _, pl := range places {
		if pl.ID == "" {
			continue
		}
		if _, ok := t.places[pl.ID]; ok {
			continue
		}
		c := Coordinates{Latitude: pl.Latitude.String(), Longitude: pl.Longitude.String()}
		if c.Latitude == "" || c.Longitude == "" {
			continue
		}
		t.places[pl.ID] = c
	}
}

type hydrateJob struct {
	person *Person
	record gedcomx.Person
}

// hydrate runs AddData over a batch with a bounded pool and waits for all of
// it. Each job writes only its own Person.
func (t *Tree) hydrate(jobs []hydrateJob) {
	if len(jobs) == 0 {
		return
	}
	workerCount := t.opts.Workers
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}
	if workerCount == 1 {
		for _, job := range jobs {
			job.person.AddData(job.record, t.facts)
		}
		return
	}

	jobsCh := make(chan hydrateJob)
	var wg sync.WaitGroup
	worker := func() {
		defer wg.Done()
		for job := range jobsCh {
			job.person.AddData(job.record, t.facts)
		}
	}

	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		go worker()
	}
	for _, job := range jobs {
		jobsCh <- job
	}
	close(jobsCh)
	wg.Wait()
}

func (t *Tree) linkChildAndParents(rels []gedcomx.ChildAndParentsRelationship) {
	for _, rel := range rels {
		father, mother, child := rel.Parent1.ID(), rel.Parent2.ID(), rel.Child.ID()
		if p, ok := t.persons[child]; ok {
			p.ParentPairs.Add(ParentPair{Father: father, Mother: mother})
		}
		edge := ChildEdge{Father: father, Mother: mother, Child: child}
		if p, ok := t.persons[father]; ok {
			p.ChildEdges.Add(edge)
		}
		if p, ok := t.persons[mother]; ok {
			p.ChildEdges.Add(edge)
		}
	}
}

func (t *Tree) linkCouples(rels []gedcomx.Relationship) {
	for _, rel := range rels {
		if rel.Type != gedcomx.RelationshipCouple {
			continue
		}
		edge := SpouseEdge{Person1: rel.Person1.ID(), Person2: rel.Person2.ID(), RelationshipID: rel.ID}
		if p, ok := t.persons[edge.Person1]; ok {
			p.SpouseEdges.Add(edge)
		}
		if p, ok := t.persons[edge.Person2]; ok {
			p.SpouseEdges.Add(edge)
		}
	}
}

func (t *Tree) family(key FamilyKey) *Family {
	if f, ok := t.families[key]; ok {
		return f
	}
	f := NewFamily(key)
	t.families[key] = f
	t.familyOrder = append(t.familyOrder, key)
	return f
}

// ResolveTrio links a child to the family of its parents. Known parents
// record the union; the child and the family are linked only when the child
// and at least one parent are known. Repeated calls change nothing.
func (t *Tree) ResolveTrio(father, mother, child string) {
	key := FamilyKey{Father: father, Mother: mother}
	f, fatherKnown := t.persons[father]
	if fatherKnown {
		f.Unions.Add(key)
	}
	m, motherKnown := t.persons[mother]
	if motherKnown {
		m.Unions.Add(key)
	}
	c, childKnown := t.persons[child]
	if !childKnown || (!fatherKnown && !motherKnown) {
		return
	}
	c.ChildOf.Add(key)
	t.family(key).AddChild(child)
}
