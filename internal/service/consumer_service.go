package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/entity"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/specification"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/pkg/embedding"
	"ai-report-be/pkg/llm"
	"ai-report-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type IConsumerService interface {
	// Consume subscribes to the index and report topics. Message handling
	// continues in the background until ctx is cancelled.
	Consume(ctx context.Context) error
	IndexDocument(ctx context.Context, documentId uuid.UUID) error
}

type ConsumerConfig struct {
	IndexTopic        string
	ReportTopic       string
	ChunkSize         int
	ChunkOverlap      int
	MaxConcurrentRuns int
	EmbedMaxTries     uint
}

type consumerService struct {
	subscriber        message.Subscriber
	cfg               ConsumerConfig
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	reportService     IReportService
	logger            logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	cfg ConsumerConfig,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	reportService IReportService,
	logger logger.ILogger,
) IConsumerService {
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = 2
	}
	if cfg.EmbedMaxTries == 0 {
		cfg.EmbedMaxTries = 3
	}
	return &consumerService{
		subscriber:        subscriber,
		cfg:               cfg,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		reportService:     reportService,
		logger:            logger,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	indexMessages, err := cs.subscriber.Subscribe(ctx, cs.cfg.IndexTopic)
	if err != nil {
		return err
	}
	reportMessages, err := cs.subscriber.Subscribe(ctx, cs.cfg.ReportTopic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range indexMessages {
			cs.processIndexMessage(ctx, msg)
		}
	}()

	go func() {
		// Runs are long; bound how many execute at once.
		var g errgroup.Group
		g.SetLimit(cs.cfg.MaxConcurrentRuns)
		for msg := range reportMessages {
			msg := msg
			g.Go(func() error {
				cs.processReportMessage(ctx, msg)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return nil
}

func (cs *consumerService) processReportMessage(ctx context.Context, msg *message.Message) {
	var payload dto.RunReportMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Invalid report message", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	// Run failures are recorded by the report service; redelivery would
	// only repeat them.
	msg.Ack()

	if _, err := cs.reportService.Execute(ctx, &payload); err != nil {
		cs.logger.Warn("CONSUMER", "Queued report run failed", map[string]interface{}{
			"run_id": payload.RunId.String(),
			"error":  err.Error(),
		})
	}
}

func (cs *consumerService) processIndexMessage(ctx context.Context, msg *message.Message) {
	var payload dto.IndexDocumentMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("CONSUMER", "Invalid index message", map[string]interface{}{"error": err.Error()})
		msg.Ack()
		return
	}

	if err := cs.IndexDocument(ctx, payload.DocumentId); err != nil {
		cs.logger.Error("CONSUMER", "Document indexing failed", map[string]interface{}{
			"document_id": payload.DocumentId.String(),
			"error":       err.Error(),
		})
		if llm.IsTransient(err) {
			msg.Nack()
			return
		}
	}
	msg.Ack()
}

// IndexDocument replaces the document's chunks with freshly embedded ones and
// marks it indexed. A missing document is not an error.
func (cs *consumerService) IndexDocument(ctx context.Context, documentId uuid.UUID) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: documentId})
	if err != nil {
		return err
	}
	if document == nil {
		cs.logger.Warn("CONSUMER", "Document not found, skipping", map[string]interface{}{
			"document_id": documentId.String(),
		})
		return nil
	}

	chunks := utils.SplitText(document.Content, cs.cfg.ChunkSize, cs.cfg.ChunkOverlap)
	cs.logger.Info("CONSUMER", "Indexing document", map[string]interface{}{
		"document_id": documentId.String(),
		"chunks":      len(chunks),
	})

	newChunks := make([]*entity.DocumentChunk, 0, len(chunks))
	for i, chunk := range chunks {
		// The title gives short chunks enough context to embed well.
		values, err := cs.embed(ctx, document.Title+"\n\n"+chunk)
		if err != nil {
			return err
		}
		newChunks = append(newChunks, &entity.DocumentChunk{
			Id:             uuid.New(),
			Content:        chunk,
			EmbeddingValue: values,
			DocumentId:     document.Id,
			ChunkIndex:     i,
			CreatedAt:      time.Now(),
		})
	}

	err = unitofwork.InTransaction(ctx, uow, func(tx unitofwork.UnitOfWork) error {
		if err := tx.DocumentChunkRepository().DeleteByDocumentId(ctx, document.Id); err != nil {
			return err
		}
		if len(newChunks) > 0 {
			if err := tx.DocumentChunkRepository().CreateBulk(ctx, newChunks); err != nil {
				return err
			}
		}
		return tx.DocumentRepository().MarkIndexed(ctx, document.Id)
	})
	if err != nil {
		return err
	}

	cs.logger.Info("CONSUMER", "Document indexed", map[string]interface{}{
		"document_id": documentId.String(),
		"chunks":      len(newChunks),
	})
	return nil
}

func (cs *consumerService) embed(ctx context.Context, text string) ([]float32, error) {
	return backoff.Retry(ctx, func() ([]float32, error) {
		res, err := cs.embeddingProvider.Generate(ctx, text, embedding.TaskRetrievalDocument)
		if err != nil {
			if !llm.IsTransient(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return res.Embedding.Values, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(cs.cfg.EmbedMaxTries),
	)
}
