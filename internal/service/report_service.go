package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/entity"
	"ai-report-be/internal/events"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/internal/repository/contract"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/pkg/mapreduce"

	"github.com/google/uuid"
)

var ErrReportNotFound = errors.New("report not found")

// SourceFactory returns the document source scoped to a collection.
type SourceFactory func(collection string) mapreduce.DocumentSource

type IReportService interface {
	// Run executes a report synchronously.
	Run(ctx context.Context, req *dto.CreateReportRequest) (*dto.ReportResponse, error)
	// Enqueue schedules a run on the report topic and returns its ID.
	Enqueue(ctx context.Context, req *dto.CreateReportRequest) (*dto.QueueReportResponse, error)
	// Execute runs a queued or synchronous request end to end: status
	// tracking, persistence and lifecycle events included.
	Execute(ctx context.Context, msg *dto.RunReportMessage) (*dto.ReportResponse, error)
	Status(ctx context.Context, id uuid.UUID) (*dto.ReportStatusResponse, error)
}

type reportService struct {
	uowFactory  unitofwork.RepositoryFactory
	sources     SourceFactory
	extractor   mapreduce.Extractor
	synthesizer mapreduce.Synthesizer
	pipeline    mapreduce.Config
	statusRepo  contract.RunStatusRepository
	events      events.Publisher
	queue       IPublisherService
	logger      logger.ILogger
}

func NewReportService(
	uowFactory unitofwork.RepositoryFactory,
	sources SourceFactory,
	extractor mapreduce.Extractor,
	synthesizer mapreduce.Synthesizer,
	pipeline mapreduce.Config,
	statusRepo contract.RunStatusRepository,
	eventPublisher events.Publisher,
	queue IPublisherService,
	logger logger.ILogger,
) IReportService {
	return &reportService{
		uowFactory:  uowFactory,
		sources:     sources,
		extractor:   extractor,
		synthesizer: synthesizer,
		pipeline:    pipeline,
		statusRepo:  statusRepo,
		events:      eventPublisher,
		queue:       queue,
		logger:      logger,
	}
}

func (s *reportService) Run(ctx context.Context, req *dto.CreateReportRequest) (*dto.ReportResponse, error) {
	res, err := s.Execute(ctx, toRunMessage(uuid.New(), req))
	if err != nil {
		return nil, err
	}
	if !req.IncludeOutcomes {
		res.Outcomes = nil
	}
	return res, nil
}

func (s *reportService) Enqueue(ctx context.Context, req *dto.CreateReportRequest) (*dto.QueueReportResponse, error) {
	runId := uuid.New()
	msg := toRunMessage(runId, req)

	if err := s.saveStatus(ctx, &entity.RunStatus{
		RunID:      runId.String(),
		Query:      msg.Query,
		Collection: msg.Collection,
		State:      mapreduce.StateInit,
		UpdatedAt:  time.Now(),
	}); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Publish(ctx, payload); err != nil {
		_ = s.statusRepo.Delete(ctx, runId.String())
		return nil, fmt.Errorf("failed to queue report: %w", err)
	}

	s.logger.Info("REPORT", "Report queued", map[string]interface{}{
		"run_id":     runId.String(),
		"collection": msg.Collection,
	})

	return &dto.QueueReportResponse{
		Id:     runId,
		Status: mapreduce.StateInit,
	}, nil
}

func (s *reportService) Execute(ctx context.Context, msg *dto.RunReportMessage) (*dto.ReportResponse, error) {
	runId := msg.RunId.String()
	cfg := s.pipeline
	if msg.MaxConcurrency != nil {
		cfg.MaxConcurrency = *msg.MaxConcurrency
	}
	if msg.AllowPartialOnTimeout != nil {
		cfg.AllowPartialOnTimeout = *msg.AllowPartialOnTimeout
	}

	tracker := newStatusTracker(s.statusRepo, s.logger, entity.RunStatus{
		RunID:      runId,
		Query:      msg.Query,
		Collection: msg.Collection,
	})

	orch, err := mapreduce.New(
		s.sources(msg.Collection),
		s.extractor,
		s.synthesizer,
		cfg,
		mapreduce.WithRunID(runId),
		mapreduce.WithLogger(s.logger),
		mapreduce.WithTransitionHook(tracker.onTransition),
	)
	if err != nil {
		tracker.stop()
		return nil, err
	}

	s.events.PublishStarted(ctx, runId, msg.Query, msg.Collection)

	startedAt := time.Now()
	report, runErr := orch.Run(ctx, msg.Query)
	tracker.stop()

	record := &entity.Report{
		Id:         msg.RunId,
		Query:      msg.Query,
		Collection: msg.Collection,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	final := tracker.base
	final.UpdatedAt = record.FinishedAt

	if runErr != nil {
		var re *mapreduce.RunError
		record.Status = mapreduce.StateFailed
		record.ErrorKind = mapreduce.KindOf(runErr)
		record.ErrorMessage = runErr.Error()
		if errors.As(runErr, &re) {
			record.FailedState = re.State
		}
		final.State = mapreduce.StateFailed
		final.ErrorKind = record.ErrorKind
		final.Error = record.ErrorMessage
	} else {
		record.Status = report.State
		record.Text = report.Text
		record.Counts = report.Counts
		record.ShortCircuited = report.ShortCircuited
		record.Outcomes = report.Outcomes
		record.StartedAt = report.StartedAt
		record.FinishedAt = report.FinishedAt
		final.State = report.State
	}

	// The run's own context may already be cancelled; bookkeeping still has to land.
	bgCtx := context.WithoutCancel(ctx)
	s.persist(bgCtx, record)
	if err := s.saveStatus(bgCtx, &final); err != nil {
		s.logger.Warn("REPORT", "Failed to save final run status", map[string]interface{}{
			"run_id": runId,
			"error":  err.Error(),
		})
	}

	if runErr != nil {
		s.events.PublishFailed(ctx, runId, msg.Query, msg.Collection, runErr)
		return nil, runErr
	}

	s.events.PublishCompleted(ctx, report, msg.Collection)
	s.logger.Info("REPORT", "Report completed", map[string]interface{}{
		"run_id":      runId,
		"total":       report.Counts.Total,
		"informative": report.Counts.Informative,
		"skipped":     report.Counts.Skipped,
		"failed":      report.Counts.Failed,
		"duration_ms": report.Duration().Milliseconds(),
	})

	return toReportResponse(record), nil
}

func (s *reportService) Status(ctx context.Context, id uuid.UUID) (*dto.ReportStatusResponse, error) {
	status, found, err := s.statusRepo.Get(ctx, id.String())
	if err != nil {
		s.logger.Warn("REPORT", "Run status lookup failed", map[string]interface{}{
			"run_id": id.String(),
			"error":  err.Error(),
		})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	stored, err := uow.ReportRepository().FindById(ctx, id)
	if err != nil {
		return nil, err
	}

	if !found && stored == nil {
		return nil, ErrReportNotFound
	}

	res := &dto.ReportStatusResponse{Id: id}
	if found {
		res.State = status.State
		res.ErrorKind = status.ErrorKind
		res.Error = status.Error
		res.UpdatedAt = status.UpdatedAt
	}
	if stored != nil {
		res.Report = toReportResponse(stored)
		if !found {
			res.State = stored.Status
			res.ErrorKind = stored.ErrorKind
			res.Error = stored.ErrorMessage
			res.UpdatedAt = stored.FinishedAt
		}
	}
	return res, nil
}

func (s *reportService) saveStatus(ctx context.Context, status *entity.RunStatus) error {
	saveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.statusRepo.Save(saveCtx, status)
}

func (s *reportService) persist(ctx context.Context, record *entity.Report) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.ReportRepository().Create(ctx, record); err != nil {
		s.logger.Error("REPORT", "Failed to persist report", map[string]interface{}{
			"run_id": record.Id.String(),
			"error":  err.Error(),
		})
	}
}

func toRunMessage(runId uuid.UUID, req *dto.CreateReportRequest) *dto.RunReportMessage {
	collection := req.Collection
	if collection == "" {
		collection = entity.DefaultCollection
	}
	return &dto.RunReportMessage{
		RunId:                 runId,
		Query:                 req.Query,
		Collection:            collection,
		MaxConcurrency:        req.MaxConcurrency,
		AllowPartialOnTimeout: req.AllowPartialOnTimeout,
	}
}

func toReportResponse(r *entity.Report) *dto.ReportResponse {
	return &dto.ReportResponse{
		Id:         r.Id,
		Query:      r.Query,
		Collection: r.Collection,
		Status:     r.Status,
		Report:     r.Text,
		Counts: dto.ReportCounts{
			Total:       r.Counts.Total,
			Informative: r.Counts.Informative,
			Skipped:     r.Counts.Skipped,
			Failed:      r.Counts.Failed,
		},
		ShortCircuited: r.ShortCircuited,
		ErrorKind:      r.ErrorKind,
		Error:          r.ErrorMessage,
		Outcomes:       r.Outcomes,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// statusTracker writes state transitions to the status store off the
// orchestrating goroutine, preserving their order.
type statusTracker struct {
	repo    contract.RunStatusRepository
	logger  logger.ILogger
	base    entity.RunStatus
	updates chan mapreduce.State
	done    chan struct{}
}

func newStatusTracker(repo contract.RunStatusRepository, log logger.ILogger, base entity.RunStatus) *statusTracker {
	t := &statusTracker{
		repo:    repo,
		logger:  log,
		base:    base,
		updates: make(chan mapreduce.State, 8),
		done:    make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *statusTracker) onTransition(_ string, to mapreduce.State) {
	// Terminal states are written by Execute once the report is persisted.
	if mapreduce.IsTerminal(to) {
		return
	}
	select {
	case t.updates <- to:
	default:
		t.logger.Warn("REPORT", "Status update dropped", map[string]interface{}{
			"run_id": t.base.RunID,
			"state":  to,
		})
	}
}

func (t *statusTracker) loop() {
	defer close(t.done)
	for state := range t.updates {
		status := t.base
		status.State = state
		status.UpdatedAt = time.Now()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := t.repo.Save(ctx, &status); err != nil {
			t.logger.Warn("REPORT", "Failed to save run status", map[string]interface{}{
				"run_id": t.base.RunID,
				"state":  state,
				"error":  err.Error(),
			})
		}
		cancel()
	}
}

// stop flushes pending updates. It must be called exactly once.
func (t *statusTracker) stop() {
	close(t.updates)
	<-t.done
}
