package mapper

import (
	"time"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}

	var deletedAt *time.Time
	if d.DeletedAt.Valid {
		t := d.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !d.UpdatedAt.IsZero() {
		t := d.UpdatedAt
		updatedAt = &t
	}

	return &entity.Document{
		Id:         d.Id,
		Title:      d.Title,
		Content:    d.Content,
		Source:     d.Source,
		Collection: d.Collection,
		IndexedAt:  d.IndexedAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
		IsDeleted:  d.DeletedAt.Valid,
	}
}

func (m *DocumentMapper) ToModel(d *entity.Document) *model.Document {
	if d == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if d.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *d.DeletedAt, Valid: true}
	} else if d.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if d.UpdatedAt != nil {
		updatedAt = *d.UpdatedAt
	}

	return &model.Document{
		Id:         d.Id,
		Title:      d.Title,
		Content:    d.Content,
		Source:     d.Source,
		Collection: d.Collection,
		IndexedAt:  d.IndexedAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  updatedAt,
		DeletedAt:  deletedAt,
	}
}

func (m *DocumentMapper) ToEntities(docs []*model.Document) []*entity.Document {
	entities := make([]*entity.Document, len(docs))
	for i, d := range docs {
		entities[i] = m.ToEntity(d)
	}
	return entities
}

type DocumentChunkMapper struct{}

func NewDocumentChunkMapper() *DocumentChunkMapper {
	return &DocumentChunkMapper{}
}

func (m *DocumentChunkMapper) ToEntity(c *model.DocumentChunk) *entity.DocumentChunk {
	if c == nil {
		return nil
	}

	var deletedAt *time.Time
	if c.DeletedAt.Valid {
		t := c.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	return &entity.DocumentChunk{
		Id:             c.Id,
		Content:        c.Content,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		DocumentId:     c.DocumentId,
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
		IsDeleted:      c.DeletedAt.Valid,
	}
}

func (m *DocumentChunkMapper) ToModel(c *entity.DocumentChunk) *model.DocumentChunk {
	if c == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if c.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *c.DeletedAt, Valid: true}
	} else if c.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	return &model.DocumentChunk{
		Id:             c.Id,
		Content:        c.Content,
		EmbeddingValue: pgvector.NewVector(c.EmbeddingValue),
		DocumentId:     c.DocumentId,
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
		DeletedAt:      deletedAt,
	}
}

func (m *DocumentChunkMapper) ToModels(chunks []*entity.DocumentChunk) []*model.DocumentChunk {
	models := make([]*model.DocumentChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
