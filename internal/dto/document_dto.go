package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateDocumentRequest struct {
	Title      string `json:"title" validate:"required,max=255"`
	Content    string `json:"content" validate:"required"`
	Source     string `json:"source" validate:"omitempty,max=512"`
	Collection string `json:"collection" validate:"omitempty,max=100"`
}

type CreateDocumentResponse struct {
	Id uuid.UUID `json:"id"`
}

type ListDocumentsRequest struct {
	Collection string
	Search     string
	Page       int `validate:"min=1"`
	PageSize   int `validate:"min=1,max=100"`
}

type DocumentResponse struct {
	Id         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content,omitempty"`
	Source     string     `json:"source"`
	Collection string     `json:"collection"`
	IndexedAt  *time.Time `json:"indexed_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ListDocumentsResponse struct {
	Items    []*DocumentResponse `json:"items"`
	Total    int64               `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// IndexDocumentMessage is the watermill payload that triggers chunking and
// embedding of one document.
type IndexDocumentMessage struct {
	DocumentId uuid.UUID `json:"document_id"`
}
