package runstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuro-analyst/neuroclean/internal/eeg/pipeline"
	"github.com/neuro-analyst/neuroclean/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport(started time.Time) *pipeline.CleaningReport {
	hp := 1.0
	return &pipeline.CleaningReport{
		RunID:       uuid.NewString(),
		StartedAt:   started,
		FinishedAt:  started.Add(3 * time.Second),
		SampleRate:  250,
		NumChannels: 8,
		NumSamples:  2500,
		Filter:      pipeline.FilterRecord{HighPassHz: &hp, NotchHz: []float64{60}},
		BadChannels: []pipeline.BadChannelRecord{
			{Index: 3, Name: "F4", DeviationScore: 4.2, RefCorrelation: 0.31, Interpolated: true},
		},
		Components: []pipeline.ComponentRecord{
			{Index: 0, Label: "artifact", Kind: "ocular", Score: 3.1, Removed: true},
			{Index: 1, Label: "neural", Score: 0.4},
		},
		Seed:             97,
		BadChannelPolicy: "interpolate",
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := openStore(t)
	rep := sampleReport(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))

	require.NoError(t, s.SaveRun(rep, "in.edf", "in_cleaned.edf"))

	run, err := s.GetRun(rep.RunID)
	require.NoError(t, err)

	assert.Equal(t, rep.RunID, run.RunID)
	assert.Equal(t, "in.edf", run.InputPath)
	assert.Equal(t, "in_cleaned.edf", run.OutputPath)
	assert.Equal(t, 250.0, run.SampleRate)
	assert.Equal(t, 8, run.NumChannels)
	assert.Equal(t, 1, run.BadChannels)
	assert.Equal(t, 1, run.RemovedComponents)
	assert.Equal(t, int64(97), run.Seed)

	require.NotNil(t, run.Report)
	assert.Equal(t, rep.BadChannels, run.Report.BadChannels)
	assert.Equal(t, rep.Components, run.Report.Components)
	require.NotNil(t, run.Report.Filter.HighPassHz)
	assert.Equal(t, 1.0, *run.Report.Filter.HighPassHz)
}

func TestGetRunNotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.GetRun("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openStore(t)
	base := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		rep := sampleReport(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, s.SaveRun(rep, "in.edf", "out.edf"))
		ids = append(ids, rep.RunID)
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[0], runs[2].RunID)
	// listing does not decode stored reports
	assert.Nil(t, runs[0].Report)

	limited, err := s.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestSaveRunDuplicateID(t *testing.T) {
	s := openStore(t)
	rep := sampleReport(time.Now().UTC())

	require.NoError(t, s.SaveRun(rep, "in.edf", "out.edf"))
	assert.Error(t, s.SaveRun(rep, "in.edf", "out.edf"))
}

func TestMigrateVersion(t *testing.T) {
	s := openStore(t)

	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)

	require.NoError(t, s.MigrateDown())
	version, _, err = s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}
