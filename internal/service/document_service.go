package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/entity"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/specification"
	"ai-report-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

var ErrDocumentNotFound = errors.New("document not found")

type IDocumentService interface {
	Create(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error)
	Show(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error)
	List(ctx context.Context, req *dto.ListDocumentsRequest) (*dto.ListDocumentsResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// Reindex queues the document for chunking and embedding again.
	Reindex(ctx context.Context, id uuid.UUID) error
}

type documentService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	logger           logger.ILogger
}

func NewDocumentService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	logger logger.ILogger,
) IDocumentService {
	return &documentService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		logger:           logger,
	}
}

func (s *documentService) Create(ctx context.Context, req *dto.CreateDocumentRequest) (*dto.CreateDocumentResponse, error) {
	collection := req.Collection
	if collection == "" {
		collection = entity.DefaultCollection
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	document := entity.Document{
		Id:         uuid.New(),
		Title:      req.Title,
		Content:    req.Content,
		Source:     req.Source,
		Collection: collection,
		CreatedAt:  time.Now(),
	}

	if err := uow.DocumentRepository().Create(ctx, &document); err != nil {
		return nil, err
	}

	if err := s.queueIndex(ctx, document.Id); err != nil {
		return nil, err
	}

	return &dto.CreateDocumentResponse{
		Id: document.Id,
	}, nil
}

func (s *documentService) Show(ctx context.Context, id uuid.UUID) (*dto.DocumentResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if document == nil {
		return nil, ErrDocumentNotFound
	}

	res := toDocumentResponse(document)
	res.Content = document.Content
	return res, nil
}

func (s *documentService) List(ctx context.Context, req *dto.ListDocumentsRequest) (*dto.ListDocumentsResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	filters := []specification.Specification{
		specification.ByCollection{Collection: req.Collection},
	}
	if req.Search != "" {
		filters = append(filters, specification.DocumentSearchQuery{Query: req.Search})
	}

	total, err := uow.DocumentRepository().Count(ctx, filters...)
	if err != nil {
		return nil, err
	}

	specs := append(filters,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Page(req.Page, req.PageSize),
	)
	documents, err := uow.DocumentRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.DocumentResponse, 0, len(documents))
	for _, d := range documents {
		items = append(items, toDocumentResponse(d))
	}

	return &dto.ListDocumentsResponse{
		Items:    items,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

func (s *documentService) Delete(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if document == nil {
		return ErrDocumentNotFound
	}

	return unitofwork.InTransaction(ctx, uow, func(tx unitofwork.UnitOfWork) error {
		if err := tx.DocumentChunkRepository().DeleteByDocumentId(ctx, id); err != nil {
			return err
		}
		return tx.DocumentRepository().Delete(ctx, id)
	})
}

func (s *documentService) Reindex(ctx context.Context, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return err
	}
	if document == nil {
		return ErrDocumentNotFound
	}
	return s.queueIndex(ctx, id)
}

func (s *documentService) queueIndex(ctx context.Context, id uuid.UUID) error {
	payload, err := json.Marshal(dto.IndexDocumentMessage{DocumentId: id})
	if err != nil {
		return err
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		return err
	}
	s.logger.Debug("DOCUMENT", "Document queued for indexing", map[string]interface{}{
		"document_id": id.String(),
	})
	return nil
}

func toDocumentResponse(d *entity.Document) *dto.DocumentResponse {
	return &dto.DocumentResponse{
		Id:         d.Id,
		Title:      d.Title,
		Source:     d.Source,
		Collection: d.Collection,
		IndexedAt:  d.IndexedAt,
		CreatedAt:  d.CreatedAt,
	}
}
