package mapreduce

import (
	"fmt"
)

// Collector accumulates extraction outcomes as workers report them. Each
// outcome lands in the slot of its document's position, so the batch is in
// source order no matter when outcomes arrive. A Collector is owned by the
// goroutine draining the results channel and is not safe for concurrent use.
type Collector struct {
	batch    ExtractionBatch
	filled   []bool
	received int
}

func NewCollector(n int) *Collector {
	return &Collector{
		batch:  make(ExtractionBatch, n),
		filled: make([]bool, n),
	}
}

// Accept records one terminal outcome. A second outcome for the same slot or
// an index outside the batch is an invariant violation.
func (c *Collector) Accept(o ExtractionOutcome) error {
	if o.Index < 0 || o.Index >= len(c.batch) {
		return fmt.Errorf("%w: outcome index %d out of range [0,%d)", ErrInvariantViolation, o.Index, len(c.batch))
	}
	if c.filled[o.Index] {
		return fmt.Errorf("%w: duplicate outcome for document %q at index %d", ErrInvariantViolation, o.DocumentID, o.Index)
	}
	c.batch[o.Index] = o
	c.filled[o.Index] = true
	c.received++
	return nil
}

// Pending is the number of slots still waiting for an outcome.
func (c *Collector) Pending() int {
	return len(c.batch) - c.received
}

// Batch returns the completed batch. It fails while any slot is empty.
func (c *Collector) Batch() (ExtractionBatch, error) {
	if p := c.Pending(); p > 0 {
		return nil, fmt.Errorf("%w: %d outcomes missing", ErrInvariantViolation, p)
	}
	out := make(ExtractionBatch, len(c.batch))
	copy(out, c.batch)
	return out, nil
}

// Collect walks the batch in order, keeps the text of every informative
// outcome and tallies each status.
func Collect(batch ExtractionBatch) ([]string, Counts) {
	texts := make([]string, 0, len(batch))
	counts := Counts{Total: len(batch)}
	for _, o := range batch {
		switch o.Status {
		case StatusInformative:
			texts = append(texts, o.Text)
			counts.Informative++
		case StatusEmpty:
			counts.Skipped++
		default:
			counts.Failed++
		}
	}
	return texts, counts
}
