package mapreduce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_OrdersByIndex(t *testing.T) {
	c := NewCollector(3)
	require.NoError(t, c.Accept(ExtractionOutcome{DocumentID: "c", Index: 2, Status: StatusInformative, Text: "third"}))
	require.NoError(t, c.Accept(ExtractionOutcome{DocumentID: "a", Index: 0, Status: StatusInformative, Text: "first"}))
	assert.Equal(t, 1, c.Pending())

	_, err := c.Batch()
	assert.ErrorIs(t, err, ErrInvariantViolation)

	require.NoError(t, c.Accept(ExtractionOutcome{DocumentID: "b", Index: 1, Status: StatusEmpty}))
	batch, err := c.Batch()
	require.NoError(t, err)

	texts, counts := Collect(batch)
	assert.Equal(t, []string{"first", "third"}, texts)
	assert.Equal(t, Counts{Total: 3, Informative: 2, Skipped: 1}, counts)
}

func TestCollector_RejectsBadOutcomes(t *testing.T) {
	c := NewCollector(2)
	require.NoError(t, c.Accept(ExtractionOutcome{DocumentID: "a", Index: 0, Status: StatusEmpty}))

	assert.ErrorIs(t, c.Accept(ExtractionOutcome{DocumentID: "a", Index: 0, Status: StatusEmpty}), ErrInvariantViolation)
	assert.ErrorIs(t, c.Accept(ExtractionOutcome{DocumentID: "x", Index: 2}), ErrInvariantViolation)
	assert.ErrorIs(t, c.Accept(ExtractionOutcome{DocumentID: "x", Index: -1}), ErrInvariantViolation)
	assert.Equal(t, 1, c.Pending())
}

func TestCollect(t *testing.T) {
	tests := []struct {
		name       string
		batch      ExtractionBatch
		wantTexts  []string
		wantCounts Counts
	}{
		{
			name:       "empty batch",
			batch:      nil,
			wantTexts:  []string{},
			wantCounts: Counts{},
		},
		{
			name: "mixed statuses keep order",
			batch: ExtractionBatch{
				{Index: 0, Status: StatusFailed, Err: "boom"},
				{Index: 1, Status: StatusInformative, Text: "b"},
				{Index: 2, Status: StatusEmpty},
				{Index: 3, Status: StatusInformative, Text: "a"},
			},
			wantTexts:  []string{"b", "a"},
			wantCounts: Counts{Total: 4, Informative: 2, Skipped: 1, Failed: 1},
		},
		{
			name: "nothing informative",
			batch: ExtractionBatch{
				{Index: 0, Status: StatusEmpty},
				{Index: 1, Status: StatusFailed},
			},
			wantTexts:  []string{},
			wantCounts: Counts{Total: 2, Skipped: 1, Failed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			texts, counts := Collect(tt.batch)
			assert.Equal(t, tt.wantTexts, texts)
			assert.Equal(t, tt.wantCounts, counts)
		})
	}
}
