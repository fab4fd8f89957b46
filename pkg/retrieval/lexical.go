package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/specification"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/pkg/mapreduce"
)

// LexicalSource retrieves chunks that contain the query terms.
type LexicalSource struct {
	uowFactory unitofwork.RepositoryFactory
	cfg        Config
	logger     logger.ILogger
}

var _ mapreduce.DocumentSource = (*LexicalSource)(nil)

func NewLexicalSource(uowFactory unitofwork.RepositoryFactory, cfg Config, logger logger.ILogger) *LexicalSource {
	return &LexicalSource{
		uowFactory: uowFactory,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *LexicalSource) Retrieve(ctx context.Context, query string) ([]mapreduce.Document, error) {
	terms := specification.SearchTerms(query)
	if len(terms) == 0 {
		return []mapreduce.Document{}, nil
	}

	limit := s.cfg.TopK
	if limit <= 0 {
		limit = DefaultConfig().TopK
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	// Over-fetch so ranking by term hits has candidates to choose from.
	chunks, err := uow.DocumentChunkRepository().FindAll(ctx,
		specification.ChunkInCollection{Collection: s.cfg.Collection},
		specification.ChunkSearchQuery{Query: query},
		specification.OrderBy{Field: "document_chunks.created_at"},
		specification.Pagination{Limit: limit * 3},
	)
	if err != nil {
		return nil, fmt.Errorf("lexical search failed: %w", err)
	}

	ranked := rankByTermHits(chunks, terms, limit)
	s.logger.Debug(logModule, "Lexical search completed", map[string]interface{}{
		"terms":   terms,
		"matched": len(chunks),
		"kept":    len(ranked),
	})

	docs := make([]mapreduce.Document, len(ranked))
	for i, r := range ranked {
		docs[i] = chunkToDocument(r.chunk)
		docs[i].Score = r.score
	}
	if err := hydrateTitles(ctx, uow, docs); err != nil {
		s.logger.Warn(logModule, "Failed to hydrate document titles", map[string]interface{}{"error": err.Error()})
	}
	return docs, nil
}

type rankedChunk struct {
	chunk *entity.DocumentChunk
	score float32
}

// rankByTermHits scores each chunk by the share of terms it contains and
// keeps the best limit, ties in input order. Chunks matching no term are
// dropped.
func rankByTermHits(chunks []*entity.DocumentChunk, terms []string, limit int) []rankedChunk {
	ranked := make([]rankedChunk, 0, len(chunks))
	for _, c := range chunks {
		content := strings.ToLower(c.Content)
		hits := 0
		for _, t := range terms {
			if strings.Contains(content, t) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		ranked = append(ranked, rankedChunk{chunk: c, score: float32(hits) / float32(len(terms))})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
