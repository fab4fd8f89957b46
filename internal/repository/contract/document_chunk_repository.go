package contract

import (
	"context"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredDocumentChunk wraps DocumentChunk with its similarity score
type ScoredDocumentChunk struct {
	Chunk      *entity.DocumentChunk
	Similarity float64 // 0.0 to 1.0 (1.0 = identical)
}

type DocumentChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.DocumentChunk) error
	DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentChunk, error)
	// SearchSimilarWithScore returns the closest chunks in collection whose
	// cosine similarity is at least threshold, best first.
	SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, collection string, threshold float64) ([]*ScoredDocumentChunk, error)
}
