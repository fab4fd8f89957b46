package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ai-report-be/internal/entity"
	"ai-report-be/internal/repository/contract"
	"ai-report-be/internal/repository/specification"
	"ai-report-be/internal/repository/unitofwork"
	"ai-report-be/pkg/mapreduce"

	"github.com/google/uuid"
)

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*entity.Report
	err     error
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{reports: map[uuid.UUID]*entity.Report{}}
}

func (r *fakeReportRepo) Create(ctx context.Context, report *entity.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	cp := *report
	r.reports[report.Id] = &cp
	return nil
}

func (r *fakeReportRepo) FindById(ctx context.Context, id uuid.UUID) (*entity.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rep, ok := r.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *rep
	return &cp, nil
}

func (r *fakeReportRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Report, error) {
	return nil, errors.New("not implemented")
}

type fakeUow struct {
	reports *fakeReportRepo
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) DocumentRepository() contract.DocumentRepository           { return nil }
func (u *fakeUow) DocumentChunkRepository() contract.DocumentChunkRepository { return nil }
func (u *fakeUow) ReportRepository() contract.ReportRepository               { return u.reports }

type fakeUowFactory struct {
	uow *fakeUow
}

func (f *fakeUowFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return f.uow
}

type upperExtractor struct{}

func (upperExtractor) Extract(ctx context.Context, query string, doc mapreduce.Document) (mapreduce.Extraction, error) {
	return mapreduce.ClassifyExtraction(strings.ToUpper(doc.Content)), nil
}

type joinSynthesizer struct {
	err error
}

func (s joinSynthesizer) Synthesize(ctx context.Context, query string, texts []string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return strings.Join(texts, "|"), nil
}

type recordingEvents struct {
	mu        sync.Mutex
	started   []string
	completed []string
	failed    []string
}

func (e *recordingEvents) PublishStarted(ctx context.Context, runID, query, collection string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, runID)
}

func (e *recordingEvents) PublishCompleted(ctx context.Context, report *mapreduce.Report, collection string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, report.RunID)
}

func (e *recordingEvents) PublishFailed(ctx context.Context, runID, query, collection string, runErr error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed = append(e.failed, runID)
}

type recordingQueue struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (q *recordingQueue) Publish(ctx context.Context, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.payloads = append(q.payloads, payload)
	return nil
}
