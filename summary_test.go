package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, Stats{
		Phases: []PhaseTiming{
			{Name: phaseLogin, Elapsed: 500 * time.Millisecond},
			{Name: phaseAscend, Elapsed: 1500 * time.Millisecond},
		},
		Requests: 40,
		Persons:  100,
		Families: 30,
		Total:    2 * time.Second,
	}, false)

	out := buf.String()
	assert.Contains(t, out, "Timing breakdown")
	assert.Contains(t, out, "login")
	assert.Contains(t, out, "0.50s")
	assert.Contains(t, out, "1.50s")
	assert.Contains(t, out, "2.00s")
	assert.Contains(t, out, "40 (20.0/s)")
	assert.Contains(t, out, "100 (50.0/s)")
	assert.Contains(t, out, "30")
}

func TestWriteSummaryWithoutTime(t *testing.T) {
	var buf bytes.Buffer
	WriteSummary(&buf, Stats{Requests: 3}, true)
	assert.Contains(t, buf.String(), "3 (0.0/s)")
}

func TestStatsElapsed(t *testing.T) {
	s := Stats{Phases: []PhaseTiming{
		{Name: phaseAscend, Elapsed: time.Second},
		{Name: phaseOutput, Elapsed: 2 * time.Second},
		{Name: phaseAscend, Elapsed: time.Second},
	}}
	assert.Equal(t, 2*time.Second, s.Elapsed(phaseAscend))
	assert.Zero(t, s.Elapsed(phaseSpouses))
}
