package mapreduce

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"ai-report-be/pkg/llm"
)

// fastConfig keeps backoff waits short so retry tests stay quick.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.BackoffInitial = time.Millisecond
	cfg.BackoffMax = 5 * time.Millisecond
	cfg.PerCallTimeout = 2 * time.Second
	cfg.RunTimeout = 10 * time.Second
	return cfg
}

type extractFunc func(ctx context.Context, query string, doc Document) (Extraction, error)

type fakeExtractor struct {
	fn    extractFunc
	mu    sync.Mutex
	calls map[string]int
}

func newFakeExtractor(fn extractFunc) *fakeExtractor {
	return &fakeExtractor{fn: fn, calls: map[string]int{}}
}

func (f *fakeExtractor) Extract(ctx context.Context, query string, doc Document) (Extraction, error) {
	f.mu.Lock()
	f.calls[doc.ID]++
	f.mu.Unlock()
	return f.fn(ctx, query, doc)
}

func (f *fakeExtractor) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	calls  int
	inputs [][]string
	fn     func(ctx context.Context, query string, texts []string) (string, error)
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, query string, texts []string) (string, error) {
	f.mu.Lock()
	f.calls++
	cp := make([]string, len(texts))
	copy(cp, texts)
	f.inputs = append(f.inputs, cp)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(ctx, query, texts)
	}
	return "report", nil
}

func (f *fakeSynthesizer) lastInput() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return nil
	}
	return f.inputs[len(f.inputs)-1]
}

// fakeProvider answers every prompt through fn and counts calls.
type fakeProvider struct {
	fn    func(ctx context.Context, prompt string) (string, error)
	calls atomic.Int32
}

var _ llm.LLMProvider = (*fakeProvider)(nil)

func (p *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	return p.Generate(ctx, history[len(history)-1].Content, options...)
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, options ...llm.Option) (string, error) {
	p.calls.Add(1)
	return p.fn(ctx, prompt)
}

func echoExtraction(ctx context.Context, query string, doc Document) (Extraction, error) {
	return Extraction{Status: StatusInformative, Text: "fact:" + doc.ID}, nil
}

type recordingLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (l *recordingLogger) record(msg string) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(_, msg string, _ map[string]interface{}) { l.record(msg) }
func (l *recordingLogger) Info(_, msg string, _ map[string]interface{})  { l.record(msg) }
func (l *recordingLogger) Warn(_, msg string, _ map[string]interface{})  { l.record(msg) }
func (l *recordingLogger) Error(_, msg string, _ map[string]interface{}) { l.record(msg) }

func (l *recordingLogger) contains(msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.msgs {
		if m == msg {
			return true
		}
	}
	return false
}
