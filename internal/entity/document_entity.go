package entity

import (
	"time"

	"github.com/google/uuid"
)

// DefaultCollection is used when a document or report names no collection.
const DefaultCollection = "default"

type Document struct {
	Id         uuid.UUID
	Title      string
	Content    string
	Source     string
	Collection string
	IndexedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}

type DocumentChunk struct {
	Id             uuid.UUID
	Content        string
	EmbeddingValue []float32
	DocumentId     uuid.UUID
	ChunkIndex     int
	CreatedAt      time.Time
	UpdatedAt      *time.Time
	DeletedAt      *time.Time
	IsDeleted      bool
}
