package mapper

import (
	"testing"
	"time"

	"ai-report-be/internal/entity"
	"ai-report-be/pkg/mapreduce"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportMapper_FlattensCountsAndOutcomes(t *testing.T) {
	m := NewReportMapper()
	now := time.Now().UTC().Truncate(time.Second)
	in := &entity.Report{
		Id:     uuid.New(),
		Query:  "status report",
		Status: mapreduce.StateDone,
		Text:   "report",
		Counts: mapreduce.Counts{Total: 3, Informative: 2, Skipped: 1},
		Outcomes: mapreduce.ExtractionBatch{
			{DocumentID: "a", Index: 0, Status: mapreduce.StatusInformative, Text: "x", Attempts: 1},
			{DocumentID: "b", Index: 1, Status: mapreduce.StatusEmpty, Attempts: 1},
			{DocumentID: "c", Index: 2, Status: mapreduce.StatusInformative, Text: "y", Attempts: 2},
		},
		StartedAt:  now,
		FinishedAt: now.Add(time.Second),
	}

	mdl, err := m.ToModel(in)
	require.NoError(t, err)
	assert.Equal(t, 3, mdl.DocumentsTotal)
	assert.Equal(t, 1, mdl.DocumentsSkipped)
	assert.Equal(t, "done", mdl.Status)
	assert.Contains(t, string(mdl.Outcomes), `"document_id":"c"`)

	out, err := m.ToEntity(mdl)
	require.NoError(t, err)
	assert.Equal(t, in.Counts, out.Counts)
	assert.Equal(t, in.Outcomes, out.Outcomes)
}

func TestReportMapper_FailedRunHasEmptyOutcomes(t *testing.T) {
	m := NewReportMapper()
	mdl, err := m.ToModel(&entity.Report{
		Id:          uuid.New(),
		Status:      mapreduce.StateFailed,
		ErrorKind:   mapreduce.KindRetrieval,
		FailedState: mapreduce.StateRetrieving,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(mdl.Outcomes))

	out, err := m.ToEntity(mdl)
	require.NoError(t, err)
	assert.Equal(t, mapreduce.KindRetrieval, out.ErrorKind)
	assert.Empty(t, out.Outcomes)
}
