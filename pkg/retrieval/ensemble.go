package retrieval

import (
	"context"
	"errors"
	"fmt"

	"ai-report-be/internal/pkg/logger"
	"ai-report-be/pkg/mapreduce"

	"golang.org/x/sync/errgroup"
)

// NamedSource labels a sub-source for logs and errors.
type NamedSource struct {
	Name   string
	Source mapreduce.DocumentSource
}

// EnsembleSource queries every sub-source in parallel and concatenates the
// results in sub-source order, keeping the first occurrence of each ID. A
// failing sub-source is skipped unless all of them fail, or RequireAll is set.
type EnsembleSource struct {
	sources    []NamedSource
	maxResults int
	requireAll bool
	logger     logger.ILogger
}

var _ mapreduce.DocumentSource = (*EnsembleSource)(nil)

type EnsembleOption func(*EnsembleSource)

// WithMaxResults caps the merged sequence. Zero keeps everything.
func WithMaxResults(n int) EnsembleOption {
	return func(e *EnsembleSource) { e.maxResults = n }
}

// WithRequireAll fails the retrieval if any sub-source fails.
func WithRequireAll() EnsembleOption {
	return func(e *EnsembleSource) { e.requireAll = true }
}

func NewEnsembleSource(logger logger.ILogger, sources []NamedSource, opts ...EnsembleOption) *EnsembleSource {
	e := &EnsembleSource{sources: sources, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *EnsembleSource) Retrieve(ctx context.Context, query string) ([]mapreduce.Document, error) {
	if len(e.sources) == 0 {
		return []mapreduce.Document{}, nil
	}

	results := make([][]mapreduce.Document, len(e.sources))
	errs := make([]error, len(e.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range e.sources {
		g.Go(func() error {
			docs, err := src.Source.Retrieve(gctx, query)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", src.Name, err)
				if e.requireAll {
					return errs[i]
				}
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		e.logger.Warn(logModule, "Retriever failed, continuing with the others", map[string]interface{}{
			"source": e.sources[i].Name,
			"error":  err.Error(),
		})
	}
	if failed == len(e.sources) {
		return nil, fmt.Errorf("all retrievers failed: %w", errors.Join(errs...))
	}

	merged := make([]mapreduce.Document, 0)
	seen := make(map[string]bool)
	for _, docs := range results {
		for _, d := range docs {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			merged = append(merged, d)
			if e.maxResults > 0 && len(merged) == e.maxResults {
				return merged, nil
			}
		}
	}
	return merged, nil
}
