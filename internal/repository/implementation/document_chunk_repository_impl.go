package implementation

import (
	"context"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/mapper"
	"ai-report-be/internal/model"
	"ai-report-be/internal/repository/contract"
	"ai-report-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentChunkMapper
}

func NewDocumentChunkRepository(db *gorm.DB) contract.DocumentChunkRepository {
	return &DocumentChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentChunkMapper(),
	}
}

func (r *DocumentChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return err
	}
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *DocumentChunkRepositoryImpl) DeleteByDocumentId(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&model.DocumentChunk{}).Error
}

func (r *DocumentChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentChunk, error) {
	var models []*model.DocumentChunk
	query := r.db.WithContext(ctx).Model(&model.DocumentChunk{})
	query = specification.Apply(query, specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.DocumentChunk, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *DocumentChunkRepositoryImpl) SearchSimilarWithScore(ctx context.Context, embedding []float32, limit int, collection string, threshold float64) ([]*contract.ScoredDocumentChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance in pgvector is 1 - cosine_similarity.
	type result struct {
		model.DocumentChunk
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("document_chunks").
		Select("document_chunks.*, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("document_chunks.deleted_at IS NULL").
		Where("documents.deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold)
	if collection != "" {
		query = query.Where("documents.collection = ?", collection)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredDocumentChunk, len(results))
	for i := range results {
		scored[i] = &contract.ScoredDocumentChunk{
			Chunk:      r.mapper.ToEntity(&results[i].DocumentChunk),
			Similarity: results[i].Similarity,
		}
	}
	return scored, nil
}
