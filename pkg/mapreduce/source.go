package mapreduce

import (
	"context"
	"fmt"
)

// DocumentSource produces the ordered documents for a query. An empty result
// is a valid answer; an error means no sequence could be produced at all.
type DocumentSource interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// SourceFunc adapts a function to DocumentSource.
type SourceFunc func(ctx context.Context, query string) ([]Document, error)

func (f SourceFunc) Retrieve(ctx context.Context, query string) ([]Document, error) {
	return f(ctx, query)
}

// StaticSource returns the same documents for every query.
type StaticSource []Document

func (s StaticSource) Retrieve(ctx context.Context, query string) ([]Document, error) {
	out := make([]Document, len(s))
	copy(out, s)
	return out, nil
}

// checkUniqueIDs rejects sequences where two documents share an identifier,
// since outcomes are keyed by document.
func checkUniqueIDs(docs []Document) error {
	seen := make(map[string]int, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			return fmt.Errorf("document at index %d has no id", i)
		}
		if j, ok := seen[d.ID]; ok {
			return fmt.Errorf("duplicate document id %q at index %d and %d", d.ID, j, i)
		}
		seen[d.ID] = i
	}
	return nil
}
