package retrieval

import (
	"context"
	"fmt"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/specification"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/pkg/embedding"
	"ai-report-be/pkg/mapreduce"

	"github.com/google/uuid"
)

const logModule = "RETRIEVAL"

// Config encapsulates search parameters
type Config struct {
	TopK       int
	Threshold  float64
	Collection string
}

// DefaultConfig returns default search configuration
func DefaultConfig() Config {
	return Config{
		TopK:      10,
		Threshold: 0.35,
	}
}

// VectorSource retrieves document chunks by embedding similarity.
type VectorSource struct {
	embedder   embedding.EmbeddingProvider
	uowFactory unitofwork.RepositoryFactory
	cfg        Config
	logger     logger.ILogger
}

var _ mapreduce.DocumentSource = (*VectorSource)(nil)

func NewVectorSource(embedder embedding.EmbeddingProvider, uowFactory unitofwork.RepositoryFactory, cfg Config, logger logger.ILogger) *VectorSource {
	return &VectorSource{
		embedder:   embedder,
		uowFactory: uowFactory,
		cfg:        cfg,
		logger:     logger,
	}
}

func (s *VectorSource) Retrieve(ctx context.Context, query string) ([]mapreduce.Document, error) {
	res, err := s.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	scored, err := uow.DocumentChunkRepository().SearchSimilarWithScore(
		ctx,
		res.Embedding.Values,
		s.cfg.TopK,
		s.cfg.Collection,
		s.cfg.Threshold,
	)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	s.logger.Debug(logModule, "Vector search completed", map[string]interface{}{
		"results":    len(scored),
		"collection": s.cfg.Collection,
		"threshold":  s.cfg.Threshold,
	})

	docs := make([]mapreduce.Document, 0, len(scored))
	for _, sc := range scored {
		doc := chunkToDocument(sc.Chunk)
		doc.Score = float32(sc.Similarity)
		docs = append(docs, doc)
	}

	if err := hydrateTitles(ctx, uow, docs); err != nil {
		s.logger.Warn(logModule, "Failed to hydrate document titles", map[string]interface{}{"error": err.Error()})
	}
	return docs, nil
}

func chunkToDocument(chunk *entity.DocumentChunk) mapreduce.Document {
	return mapreduce.Document{
		ID:      chunk.Id.String(),
		Content: chunk.Content,
		Metadata: map[string]interface{}{
			"document_id": chunk.DocumentId.String(),
			"chunk_index": chunk.ChunkIndex,
		},
	}
}

// hydrateTitles fills Document.Title from the parent document of each chunk.
func hydrateTitles(ctx context.Context, uow unitofwork.UnitOfWork, docs []mapreduce.Document) error {
	if len(docs) == 0 {
		return nil
	}

	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, d := range docs {
		id, err := uuid.Parse(fmt.Sprint(d.Metadata["document_id"]))
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	parents, err := uow.DocumentRepository().FindAll(ctx, specification.ByIDs{IDs: ids})
	if err != nil {
		return err
	}
	titles := make(map[string]string, len(parents))
	for _, p := range parents {
		titles[p.Id.String()] = p.Title
	}

	for i := range docs {
		if title, ok := titles[fmt.Sprint(docs[i].Metadata["document_id"])]; ok {
			docs[i].Title = title
		} else {
			docs[i].Title = "Untitled Document"
		}
	}
	return nil
}
