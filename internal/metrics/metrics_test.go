package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.ObserveRequest("persons", 200, 120*time.Millisecond)
	r.ObserveRequest("persons", 200, 80*time.Millisecond)
	r.ObserveRequest("persons", 404, 10*time.Millisecond)
	r.ObserveCache(true)
	r.ObserveCache(false)
	r.ObserveCache(false)
	r.SetTreeSize(12, 4)

	assert.InDelta(t, 2, testutil.ToFloat64(r.requests.WithLabelValues("persons", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.requests.WithLabelValues("persons", "404")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.cacheLookups.WithLabelValues("hit")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(r.persons), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(r.families), 0)
}

func TestWriteFile(t *testing.T) {
	r := New()
	r.ObservePhase("ascend", 1500*time.Millisecond)
	path := filepath.Join(t.TempDir(), "getmyancestors.prom")

	require.NoError(t, r.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `getmyancestors_phase_duration_seconds{phase="ascend"} 1.5`)
}
