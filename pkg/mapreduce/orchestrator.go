package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("ai-report-be/mapreduce")

// Orchestrator drives one map-reduce run: retrieve, extract every document on
// a bounded worker pool, collect in source order, synthesize once. An
// Orchestrator serves exactly one run.
type Orchestrator struct {
	source      DocumentSource
	extractor   Extractor
	synthesizer Synthesizer
	cfg         Config
	policy      retryPolicy

	runID        string
	logger       Logger
	onTransition func(runID string, to State)

	sm   *stateMachine
	used atomic.Bool
}

type Option func(*Orchestrator)

func WithRunID(id string) Option {
	return func(o *Orchestrator) {
		if id != "" {
			o.runID = id
		}
	}
}

func WithLogger(l Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithTransitionHook registers a callback invoked after every state change.
// It runs on the orchestrating goroutine and must not block.
func WithTransitionHook(fn func(runID string, to State)) Option {
	return func(o *Orchestrator) {
		o.onTransition = fn
	}
}

// New builds an orchestrator. Zero-valued optional config fields take their
// defaults before validation.
func New(source DocumentSource, extractor Extractor, synthesizer Synthesizer, cfg Config, opts ...Option) (*Orchestrator, error) {
	if source == nil || extractor == nil || synthesizer == nil {
		return nil, fmt.Errorf("%w: source, extractor and synthesizer are required", ErrInvalidInput)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		source:      source,
		extractor:   extractor,
		synthesizer: synthesizer,
		cfg:         cfg,
		policy:      newRetryPolicy(cfg),
		runID:       uuid.NewString(),
		logger:      nopLogger{},
		sm:          newStateMachine(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Orchestrator) RunID() string { return o.runID }

// State returns the current state of the run.
func (o *Orchestrator) State() State { return o.sm.state() }

// Visited returns every state the run has been in, in order.
func (o *Orchestrator) Visited() []State { return o.sm.visited() }

// Run executes the pipeline for query. A completed run returns a Report with
// per-status counts; an aborted run returns a *RunError carrying the furthest
// state reached and the error kind.
func (o *Orchestrator) Run(ctx context.Context, query string) (*Report, error) {
	if !o.used.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRun
	}
	if strings.TrimSpace(query) == "" {
		return nil, &RunError{RunID: o.runID, State: StateInit, Kind: KindInvalidInput, Err: fmt.Errorf("%w: empty query", ErrInvalidInput)}
	}

	ctx, span := tracer.Start(ctx, "mapreduce.Run", trace.WithAttributes(
		attribute.String("run.id", o.runID),
		attribute.Int("config.max_concurrency", o.cfg.MaxConcurrency),
		attribute.Int("config.max_retries", o.cfg.MaxRetries),
	))
	defer span.End()

	startedAt := time.Now()
	var runCtx context.Context
	var cancel context.CancelFunc
	if o.cfg.RunTimeout > 0 {
		runCtx, cancel = context.WithTimeoutCause(ctx, o.cfg.RunTimeout, ErrRunTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	o.logger.Info(logModule, "Run started", map[string]interface{}{
		"run_id": o.runID,
		"query":  query,
	})

	if err := o.transition(StateRetrieving); err != nil {
		return nil, o.fail(span, KindInvariant, err)
	}
	docs, err := o.retrieve(runCtx, query)
	if err != nil {
		return nil, o.fail(span, o.abortKind(runCtx, KindRetrieval), err)
	}

	var batch ExtractionBatch
	partial := false
	if len(docs) > 0 {
		if err := o.transition(StateMapping); err != nil {
			return nil, o.fail(span, KindInvariant, err)
		}
		batch, err = o.mapDocuments(runCtx, query, docs)
		if err != nil {
			return nil, o.fail(span, KindInvariant, err)
		}
		if runCtx.Err() != nil {
			kind := o.abortKind(runCtx, KindCanceled)
			if kind != KindRunTimeout || !o.cfg.AllowPartialOnTimeout {
				return nil, o.fail(span, kind, context.Cause(runCtx))
			}
			partial = true
			o.logger.Warn(logModule, "Run timeout during mapping, reducing partial results", map[string]interface{}{
				"run_id": o.runID,
			})
		}
	}

	if err := o.transition(StateReducing); err != nil {
		return nil, o.fail(span, KindInvariant, err)
	}
	texts, counts := Collect(batch)
	span.SetAttributes(
		attribute.Int("documents.total", counts.Total),
		attribute.Int("documents.informative", counts.Informative),
		attribute.Int("documents.skipped", counts.Skipped),
		attribute.Int("documents.failed", counts.Failed),
	)

	report := &Report{
		RunID:     o.runID,
		Query:     query,
		Counts:    counts,
		Outcomes:  batch,
		StartedAt: startedAt,
	}
	if report.Outcomes == nil {
		report.Outcomes = ExtractionBatch{}
	}

	if len(texts) == 0 && o.cfg.ShortCircuitOnEmpty {
		report.Text = o.cfg.EmptyReportText
		report.ShortCircuited = true
	} else {
		// The run deadline already fired when reducing partial results, so the
		// synthesis call is bounded by the caller's context and per-call timeout.
		reduceCtx := runCtx
		if partial {
			reduceCtx = ctx
		}
		text, err := o.synthesize(reduceCtx, query, texts)
		if err != nil {
			kind := o.abortKind(reduceCtx, providerKind(err))
			return nil, o.fail(span, kind, err)
		}
		report.Text = text
	}

	if err := o.transition(StateDone); err != nil {
		return nil, o.fail(span, KindInvariant, err)
	}
	report.State = StateDone
	report.FinishedAt = time.Now()

	o.logger.Info(logModule, "Run completed", map[string]interface{}{
		"run_id":        o.runID,
		"total":         counts.Total,
		"informative":   counts.Informative,
		"skipped":       counts.Skipped,
		"failed":        counts.Failed,
		"partial":       partial,
		"short_circuit": report.ShortCircuited,
		"duration_ms":   report.Duration().Milliseconds(),
	})
	return report, nil
}

func (o *Orchestrator) retrieve(ctx context.Context, query string) ([]Document, error) {
	ctx, span := tracer.Start(ctx, "mapreduce.Retrieve")
	defer span.End()

	docs, err := o.source.Retrieve(ctx, query)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	if err := checkUniqueIDs(docs); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("retrieve documents: %w", err)
	}
	span.SetAttributes(attribute.Int("documents.count", len(docs)))

	o.logger.Info(logModule, "Documents retrieved", map[string]interface{}{
		"run_id": o.runID,
		"count":  len(docs),
	})
	return docs, nil
}

// mapDocuments dispatches every document to the worker pool and drains
// exactly len(docs) outcomes. Workers keep consuming after ctx ends so that
// every dispatched document still reports a terminal outcome.
func (o *Orchestrator) mapDocuments(ctx context.Context, query string, docs []Document) (ExtractionBatch, error) {
	workers := o.cfg.MaxConcurrency
	if workers > len(docs) {
		workers = len(docs)
	}

	jobs := make(chan int)
	results := make(chan ExtractionOutcome, len(docs))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results <- o.extractOne(ctx, query, i, docs[i])
			}
		}()
	}

	go func() {
		for i := range docs {
			jobs <- i
		}
		close(jobs)
	}()

	collector := NewCollector(len(docs))
	var acceptErr error
	for n := 0; n < len(docs); n++ {
		if err := collector.Accept(<-results); err != nil && acceptErr == nil {
			acceptErr = err
		}
	}
	wg.Wait()

	if acceptErr != nil {
		return nil, acceptErr
	}
	return collector.Batch()
}

func (o *Orchestrator) extractOne(ctx context.Context, query string, index int, doc Document) ExtractionOutcome {
	out := ExtractionOutcome{DocumentID: doc.ID, Index: index}
	if ctx.Err() != nil {
		out.Status = StatusFailed
		out.Err = fmt.Sprintf("aborted before dispatch: %v", context.Cause(ctx))
		return out
	}

	ctx, span := tracer.Start(ctx, "mapreduce.Extract", trace.WithAttributes(
		attribute.String("document.id", doc.ID),
		attribute.Int("document.index", index),
	))
	defer span.End()

	ext, attempts, err := callWithRetry(ctx, o.policy,
		func(attempt int, err error, wait time.Duration) {
			o.logger.Warn(logModule, "Extraction attempt failed, retrying", map[string]interface{}{
				"run_id":      o.runID,
				"document_id": doc.ID,
				"attempt":     attempt,
				"wait_ms":     wait.Milliseconds(),
				"error":       err.Error(),
			})
		},
		func(ctx context.Context) (Extraction, error) {
			return o.extractor.Extract(ctx, query, doc)
		},
	)
	out.Attempts = attempts
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err != nil {
		out.Status = StatusFailed
		out.Err = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		o.logger.Warn(logModule, "Extraction failed", map[string]interface{}{
			"run_id":      o.runID,
			"document_id": doc.ID,
			"attempts":    attempts,
			"error":       err.Error(),
		})
		return out
	}

	// Extractors other than LLMExtractor may report blank or sentinel text
	// as informative.
	if ext.Status == StatusInformative {
		ext = ClassifyExtraction(ext.Text)
	}
	if ext.Status == StatusInformative {
		out.Status = StatusInformative
		out.Text = ext.Text
	} else {
		out.Status = StatusEmpty
	}
	span.SetAttributes(attribute.String("status", string(out.Status)))
	o.logger.Debug(logModule, "Extraction resolved", map[string]interface{}{
		"run_id":      o.runID,
		"document_id": doc.ID,
		"status":      out.Status,
		"attempts":    attempts,
	})
	return out
}

func (o *Orchestrator) synthesize(ctx context.Context, query string, texts []string) (string, error) {
	ctx, span := tracer.Start(ctx, "mapreduce.Synthesize", trace.WithAttributes(
		attribute.Int("texts.count", len(texts)),
	))
	defer span.End()

	text, attempts, err := callWithRetry(ctx, o.policy,
		func(attempt int, err error, wait time.Duration) {
			o.logger.Warn(logModule, "Synthesis attempt failed, retrying", map[string]interface{}{
				"run_id":  o.runID,
				"attempt": attempt,
				"wait_ms": wait.Milliseconds(),
				"error":   err.Error(),
			})
		},
		func(ctx context.Context) (string, error) {
			return o.synthesizer.Synthesize(ctx, query, texts)
		},
	)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("synthesize after %d attempts: %w", attempts, err)
	}
	return text, nil
}

func (o *Orchestrator) transition(to State) error {
	if err := o.sm.transition(to); err != nil {
		return err
	}
	o.logger.Debug(logModule, "State changed", map[string]interface{}{
		"run_id": o.runID,
		"state":  to,
	})
	if o.onTransition != nil {
		o.onTransition(o.runID, to)
	}
	return nil
}

// abortKind reports the run-level cause when ctx has ended, else fallback.
func (o *Orchestrator) abortKind(ctx context.Context, fallback ErrorKind) ErrorKind {
	if ctx.Err() == nil {
		return fallback
	}
	if errors.Is(context.Cause(ctx), ErrRunTimeout) {
		return KindRunTimeout
	}
	return KindCanceled
}

// fail moves the run to failed and builds the error returned to the caller.
func (o *Orchestrator) fail(span trace.Span, kind ErrorKind, err error) error {
	furthest := o.sm.state()
	if kind == KindRunTimeout && !errors.Is(err, ErrRunTimeout) {
		err = fmt.Errorf("%w: %w", ErrRunTimeout, err)
	}
	if terr := o.transition(StateFailed); terr != nil {
		o.logger.Error(logModule, "Cannot enter failed state", map[string]interface{}{
			"run_id": o.runID,
			"from":   furthest,
			"error":  terr.Error(),
		})
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(kind))
	o.logger.Error(logModule, "Run failed", map[string]interface{}{
		"run_id": o.runID,
		"state":  furthest,
		"kind":   kind,
		"error":  err.Error(),
	})
	return &RunError{RunID: o.runID, State: furthest, Kind: kind, Err: err}
}

// Deps groups the collaborators of RunPipeline.
type Deps struct {
	Source      DocumentSource
	Extractor   Extractor
	Synthesizer Synthesizer
	Logger      Logger
	RunID       string
}

// RunPipeline builds a one-shot orchestrator and runs query through it.
func RunPipeline(ctx context.Context, query string, cfg Config, deps Deps) (*Report, error) {
	o, err := New(deps.Source, deps.Extractor, deps.Synthesizer, cfg,
		WithLogger(deps.Logger),
		WithRunID(deps.RunID),
	)
	if err != nil {
		return nil, err
	}
	return o.Run(ctx, query)
}
