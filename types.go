package main

import (
	"time"

	"github.com/AllTales-Labs/getmyancestors/internal/config"
)

// Phase names, in run order.
const (
	phaseLogin     = "login"
	phaseSeeds     = "seeds"
	phaseAscend    = "ascend"
	phaseDescend   = "descend"
	phaseSpouses   = "spouses"
	phaseSerialize = "serialize"
	phaseOutput    = "output"
)

// Options configures one run.
type Options struct {
	Config config.Config
	// ConfigFile is the YAML file the settings were loaded from, if any.
	ConfigFile string
	// Check builds the tree and compares it with the existing output file
	// without writing anything.
	Check bool
	// Force rewrites the output file even when its content hash matches.
	Force bool
	// ClearCache drops every cached response before the run.
	ClearCache bool
	// Upload copies the document to the configured bucket.
	Upload bool
	// Version ends up in the GEDCOM header.
	Version string
}

// DefaultOptions returns the options of a run with no flags.
func DefaultOptions() Options {
	return Options{
		Config:  config.Default(),
		Version: version,
	}
}

// PhaseTiming is the wall time of one phase.
type PhaseTiming struct {
	Name    string
	Elapsed time.Duration
}

// Stats summarizes a run for the timing breakdown.
type Stats struct {
	Phases   []PhaseTiming
	Requests int64
	Persons  int
	Families int
	Total    time.Duration
}

// Elapsed returns the recorded time of a phase.
func (s Stats) Elapsed(name string) time.Duration {
	var d time.Duration
	for _, p := range s.Phases {
		if p.Name == name {
			d += p.Elapsed
		}
	}
	return d
}

// Result describes what a run produced.
type Result struct {
	Stats
	ContentHash string
	// Written is false when an unchanged output file was left alone, and in
	// check mode.
	Written bool
	// Stale is only meaningful in check mode.
	Stale bool
	// UploadKey is the object key of the uploaded copy, if any.
	UploadKey string
}
