package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chazu/blockscheme/pkg/editor"
	"github.com/chazu/blockscheme/pkg/scheme"
)

var _ editor.Recorder = (*Metrics)(nil)

func histogram(t *testing.T, m *Metrics, name string) *dto.Histogram {
	t.Helper()
	families, err := m.Registry.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.Len(t, f.GetMetric(), 1)
			return f.GetMetric()[0].GetHistogram()
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func TestObserveRun(t *testing.T) {
	m := New()

	m.ObserveRun(5, 2, time.Millisecond, nil)
	m.ObserveRun(7, 3, time.Millisecond, nil)
	m.ObserveRun(8, 0, time.Millisecond, &scheme.Error{Code: scheme.CodeNotConnected})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("not_connected")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.Blocks))

	actions := histogram(t, m, "blockscheme_run_actions")
	assert.Equal(t, uint64(2), actions.GetSampleCount(), "failed runs produce no actions")
	assert.Equal(t, 5.0, actions.GetSampleSum())

	assert.Equal(t, uint64(3), histogram(t, m, "blockscheme_run_duration_seconds").GetSampleCount())
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{scheme.ErrCycleDetected, "cycle_detected"},
		{&scheme.Error{Code: scheme.CodeTypeMismatch, Op: "connect"}, "type_mismatch"},
		{errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Outcome(tt.err))
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveRun(1, 1, 0, nil)
	assert.Equal(t, 1, testutil.CollectAndCount(a.RunsTotal))
	assert.Equal(t, 0, testutil.CollectAndCount(b.RunsTotal))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveRun(3, 1, time.Millisecond, nil)

	path := filepath.Join(t.TempDir(), "blockscheme.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `blockscheme_runs_total{outcome="ok"} 1`), text)
	assert.Contains(t, text, "blockscheme_blocks 3")
}

func TestSessionRecordsRuns(t *testing.T) {
	m := New()
	s := editor.NewSession()
	s.SetRecorder(m)

	id, err := s.AddBlock(scheme.KindAdd, scheme.TypeFloat, scheme.Position{})
	require.NoError(t, err)
	s.Compute()
	require.NoError(t, s.SetValue(id, 1, scheme.SlotInput1))
	require.NoError(t, s.SetValue(id, 1, scheme.SlotInput2))
	s.Compute()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("not_connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Blocks))
}
