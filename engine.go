package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AllTales-Labs/getmyancestors/internal/gedcom"
	"github.com/AllTales-Labs/getmyancestors/internal/gedcomx"
	"github.com/AllTales-Labs/getmyancestors/internal/i18n"
	"github.com/AllTales-Labs/getmyancestors/internal/metrics"
	"github.com/AllTales-Labs/getmyancestors/internal/tree"
)

const sourceName = "getmyancestors"

// ErrNoSeeds means no starting individual was given and the account has no
// tree person of its own.
var ErrNoSeeds = errors.New("no starting individual: pass -i or link the account to a tree person")

// ErrSeedsUnavailable means none of the starting individuals could be
// downloaded.
var ErrSeedsUnavailable = errors.New("no starting individual could be downloaded")

// seedAttempts bounds the requests for starting individuals left unanswered
// by a failed batch.
const seedAttempts = 3

// Source is the remote side of a run.
type Source interface {
	tree.Service
	Login(ctx context.Context) error
	CurrentUser(ctx context.Context) (*gedcomx.User, error)
	Requests() int64
}

// Engine runs the assembly phases of one run against a Source.
type Engine struct {
	src      Source
	opts     Options
	log      *zap.Logger
	progress io.Writer
	recorder *metrics.Recorder
	tracer   trace.Tracer
	now      func() time.Time

	tree  *tree.Tree
	stats Stats
}

// NewEngine returns an engine. progress receives one line per phase and may
// be nil; recorder may be nil.
func NewEngine(src Source, opts Options, log *zap.Logger, progress io.Writer, recorder *metrics.Recorder) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		src:      src,
		opts:     opts,
		log:      log,
		progress: progress,
		recorder: recorder,
		tracer:   otel.Tracer("github.com/AllTales-Labs/getmyancestors"),
		now:      time.Now,
	}
}

// Build logs in, fetches the seeds, runs the ascending and descending
// generations, optionally resolves spouses, and returns the tree with the
// header it should be written under.
func (e *Engine) Build(ctx context.Context) (*tree.Tree, gedcom.Header, error) {
	ctx, span := e.tracer.Start(ctx, "getmyancestors.build")
	defer span.End()
	cfg := e.opts.Config

	err := e.timed(phaseLogin, func() error { return e.src.Login(ctx) })
	if err != nil {
		return nil, gedcom.Header{}, fmt.Errorf("login: %w", err)
	}

	user, err := e.src.CurrentUser(ctx)
	if err != nil {
		e.log.Warn("current user unavailable", zap.Error(err))
		user = &gedcomx.User{}
	}
	seeds, err := NormalizeSeeds(cfg.Individuals)
	if err != nil {
		return nil, gedcom.Header{}, err
	}
	if len(seeds) == 0 {
		if user.PersonID == "" {
			return nil, gedcom.Header{}, ErrNoSeeds
		}
		seeds = []string{user.PersonID}
	}

	catalog := i18n.New(user.PreferredLanguage)
	t := tree.New(e.src, tree.Options{
		PageSize:    cfg.PageSize,
		Workers:     cfg.Workers,
		Translator:  catalog,
		Coordinates: cfg.Coordinates,
		Logger:      e.log,
	})
	e.tree = t

	err = e.timed(phaseSeeds, func() error {
		e.say(catalog.T(i18n.MsgSeeds))
		return e.fetchSeeds(ctx, t, seeds)
	})
	if err != nil {
		return t, gedcom.Header{}, err
	}

	_ = e.timed(phaseAscend, func() error {
		frontier := seeds
		for gen := 1; gen <= cfg.Ascend && (len(frontier) > 0 || t.PendingParents() > 0); gen++ {
			e.say(fmt.Sprintf(catalog.T(i18n.MsgAncestors), gen))
			frontier = t.ExpandParents(ctx, frontier)
			e.log.Info("ancestors generation done", zap.Int("generation", gen), zap.Int("found", len(frontier)))
		}
		return nil
	})

	_ = e.timed(phaseDescend, func() error {
		frontier := personIDs(t)
		for gen := 1; gen <= cfg.Descend && (len(frontier) > 0 || t.PendingChildren() > 0); gen++ {
			e.say(fmt.Sprintf(catalog.T(i18n.MsgDescendants), gen))
			frontier = t.ExpandChildren(ctx, frontier)
			e.log.Info("descendants generation done", zap.Int("generation", gen), zap.Int("found", len(frontier)))
		}
		return nil
	})

	if cfg.Marriage {
		_ = e.timed(phaseSpouses, func() error {
			e.say(catalog.T(i18n.MsgSpouses))
			n := t.ExpandSpouses(ctx, personIDs(t))
			e.log.Info("spouses resolved", zap.Int("families", n))
			return nil
		})
	}

	persons, families := t.Len()
	span.SetAttributes(
		attribute.Int("persons", persons),
		attribute.Int("families", families),
		attribute.Int64("requests", e.src.Requests()))
	if e.recorder != nil {
		e.recorder.SetTreeSize(persons, families)
	}
	if err := ctx.Err(); err != nil {
		return t, gedcom.Header{}, err
	}

	h := gedcom.Header{
		Source:    sourceName,
		Version:   e.opts.Version,
		Date:      e.now().UTC(),
		Submitter: user.DisplayName,
		Language:  i18n.DisplayName(user.PreferredLanguage),
	}
	return t, h, nil
}

// fetchSeeds downloads the starting individuals, asking again for the ids
// a failed batch left unanswered. It fails when none of them is known.
func (e *Engine) fetchSeeds(ctx context.Context, t *tree.Tree, seeds []string) error {
	t.FetchPersons(ctx, seeds)
	for attempt := 1; attempt < seedAttempts && ctx.Err() == nil; attempt++ {
		retry := t.Unanswered(seeds)
		if len(retry) == 0 {
			break
		}
		e.log.Warn("retrying starting individuals", zap.Int("attempt", attempt), zap.Strings("ids", retry))
		t.FetchPersons(ctx, retry)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var missing []string
	for _, id := range seeds {
		if _, ok := t.Person(id); !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == len(seeds) {
		return fmt.Errorf("%w: %s", ErrSeedsUnavailable, strings.Join(missing, ", "))
	}
	if len(missing) > 0 {
		e.log.Warn("starting individuals not downloaded", zap.Strings("ids", missing))
	}
	return nil
}

// Stats returns the timings recorded so far with the current request count
// and tree size.
func (e *Engine) Stats() Stats {
	s := e.stats
	s.Phases = append([]PhaseTiming(nil), e.stats.Phases...)
	s.Requests = e.src.Requests()
	for _, p := range s.Phases {
		s.Total += p.Elapsed
	}
	if e.tree != nil {
		s.Persons, s.Families = e.tree.Len()
	}
	return s
}

// timed runs fn as the named phase and records its wall time, even when fn
// fails.
func (e *Engine) timed(name string, fn func() error) error {
	start := e.now()
	err := fn()
	elapsed := e.now().Sub(start)
	e.stats.Phases = append(e.stats.Phases, PhaseTiming{Name: name, Elapsed: elapsed})
	if e.recorder != nil {
		e.recorder.ObservePhase(name, elapsed)
	}
	e.log.Debug("phase done", zap.String("phase", name), zap.Duration("elapsed", elapsed), zap.Error(err))
	return err
}

func (e *Engine) say(msg string) {
	if e.progress == nil {
		return
	}
	fmt.Fprintln(e.progress, msg)
}

func personIDs(t *tree.Tree) []string {
	persons := t.Persons()
	ids := make([]string, 0, len(persons))
	for _, p := range persons {
		ids = append(ids, p.ID)
	}
	return ids
}
