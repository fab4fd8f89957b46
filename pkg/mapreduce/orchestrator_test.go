package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"ai-report-be/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func docs(n int) []Document {
	out := make([]Document, n)
	for i := range out {
		out[i] = Document{ID: fmt.Sprintf("d%02d", i), Content: fmt.Sprintf("content %d", i)}
	}
	return out
}

func TestRun_PreservesSourceOrderUnderRandomDelays(t *testing.T) {
	input := docs(40)
	ext := newFakeExtractor(func(ctx context.Context, query string, doc Document) (Extraction, error) {
		time.Sleep(time.Duration(rand.Intn(15)) * time.Millisecond)
		var i int
		fmt.Sscanf(doc.ID, "d%d", &i)
		if i%3 == 0 {
			return Extraction{Status: StatusEmpty}, nil
		}
		return Extraction{Status: StatusInformative, Text: "fact:" + doc.ID}, nil
	})
	synth := &fakeSynthesizer{}

	cfg := fastConfig()
	cfg.MaxConcurrency = 8
	o, err := New(StaticSource(input), ext, synth, cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "status report")
	require.NoError(t, err)

	var want []string
	for i, d := range input {
		if i%3 != 0 {
			want = append(want, "fact:"+d.ID)
		}
	}
	assert.Equal(t, want, synth.lastInput())
	require.Len(t, report.Outcomes, len(input))
	for i, out := range report.Outcomes {
		assert.Equal(t, input[i].ID, out.DocumentID)
		assert.Equal(t, i, out.Index)
	}
	assert.Equal(t, Counts{Total: 40, Informative: 26, Skipped: 14}, report.Counts)
}

func TestRun_RespectsMaxConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	ext := newFakeExtractor(func(ctx context.Context, query string, doc Document) (Extraction, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return Extraction{Status: StatusInformative, Text: doc.ID}, nil
	})

	cfg := fastConfig()
	cfg.MaxConcurrency = 3
	o, err := New(StaticSource(docs(20)), ext, &fakeSynthesizer{}, cfg)
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestRun_Idempotent(t *testing.T) {
	provider := &fakeProvider{fn: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Final Report:") {
			return fmt.Sprintf("report over %d bytes", len(prompt)), nil
		}
		if strings.Contains(prompt, "content 2") {
			return Sentinel, nil
		}
		return "extracted " + fmt.Sprint(len(prompt)), nil
	}}

	run := func() *Report {
		cfg := fastConfig()
		report, err := RunPipeline(context.Background(), "q", cfg, Deps{
			Source:      StaticSource(docs(6)),
			Extractor:   NewLLMExtractor(provider, nil),
			Synthesizer: NewLLMSynthesizer(provider, nil, cfg.Separator),
		})
		require.NoError(t, err)
		return report
	}

	first, second := run(), run()
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.Counts, second.Counts)
	assert.Equal(t, first.Outcomes, second.Outcomes)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRun_EmptyDocumentSequence(t *testing.T) {
	ext := newFakeExtractor(echoExtraction)
	synth := &fakeSynthesizer{}

	o, err := New(StaticSource(nil), ext, synth, fastConfig())
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "anything")
	require.NoError(t, err)

	assert.Equal(t, Counts{}, report.Counts)
	assert.Equal(t, 1, synth.calls)
	assert.Empty(t, synth.lastInput())
	assert.NotNil(t, report.Outcomes)
	assert.Equal(t, []State{StateInit, StateRetrieving, StateReducing, StateDone}, o.Visited())
	assert.Equal(t, StateDone, report.State)
}

func TestRun_SentinelOnlyExtractionIsSkipped(t *testing.T) {
	provider := &fakeProvider{fn: func(ctx context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, "Final Report:") {
			return "final", nil
		}
		if strings.Contains(prompt, "irrelevant") {
			return "NO_INFO", nil
		}
		return "useful fact", nil
	}}
	synth := &fakeSynthesizer{}

	o, err := New(StaticSource{
		{ID: "a", Content: "relevant"},
		{ID: "b", Content: "irrelevant"},
	}, NewLLMExtractor(provider, nil), synth, fastConfig())
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{"useful fact"}, synth.lastInput())
	assert.Equal(t, StatusEmpty, report.Outcomes[1].Status)
	assert.Equal(t, Counts{Total: 2, Informative: 1, Skipped: 1}, report.Counts)
}

func TestRun_TransientFailureRetried(t *testing.T) {
	ext := newFakeExtractor(nil)
	ext.fn = func(ctx context.Context, query string, doc Document) (Extraction, error) {
		if ext.callsFor(doc.ID) == 1 {
			return Extraction{}, &llm.StatusError{Provider: "fake", StatusCode: 429}
		}
		return Extraction{Status: StatusInformative, Text: "recovered"}, nil
	}
	logs := &recordingLogger{}

	o, err := New(StaticSource{{ID: "only", Content: "x"}}, ext, &fakeSynthesizer{}, fastConfig(), WithLogger(logs))
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, 2, ext.callsFor("only"))
	assert.Equal(t, StatusInformative, report.Outcomes[0].Status)
	assert.Equal(t, 2, report.Outcomes[0].Attempts)
	assert.Equal(t, Counts{Total: 1, Informative: 1}, report.Counts)
	assert.True(t, logs.contains("Extraction attempt failed, retrying"))
}

func TestRun_PerCallTimeoutIsRetried(t *testing.T) {
	ext := newFakeExtractor(nil)
	ext.fn = func(ctx context.Context, query string, doc Document) (Extraction, error) {
		if ext.callsFor(doc.ID) == 1 {
			<-ctx.Done()
			return Extraction{}, ctx.Err()
		}
		return Extraction{Status: StatusInformative, Text: "second try"}, nil
	}

	cfg := fastConfig()
	cfg.PerCallTimeout = 20 * time.Millisecond
	o, err := New(StaticSource{{ID: "slow", Content: "x"}}, ext, &fakeSynthesizer{}, cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 2, ext.callsFor("slow"))
	assert.Equal(t, StatusInformative, report.Outcomes[0].Status)
}

func TestRun_ExtractionFailuresAreNonFatal(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantAttempts int
	}{
		{name: "permanent not retried", err: llm.Permanent(errors.New("content rejected")), wantAttempts: 1},
		{name: "transient exhausted", err: llm.Transient(errors.New("overloaded")), wantAttempts: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := newFakeExtractor(func(ctx context.Context, query string, doc Document) (Extraction, error) {
				if doc.ID == "bad" {
					return Extraction{}, tt.err
				}
				return Extraction{Status: StatusInformative, Text: doc.ID}, nil
			})
			synth := &fakeSynthesizer{}

			cfg := fastConfig()
			cfg.MaxRetries = 3
			o, err := New(StaticSource{{ID: "good", Content: "x"}, {ID: "bad", Content: "y"}}, ext, synth, cfg)
			require.NoError(t, err)

			report, err := o.Run(context.Background(), "q")
			require.NoError(t, err)

			assert.Equal(t, tt.wantAttempts, ext.callsFor("bad"))
			assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
			assert.Equal(t, tt.wantAttempts, report.Outcomes[1].Attempts)
			assert.NotEmpty(t, report.Outcomes[1].Err)
			assert.Equal(t, Counts{Total: 2, Informative: 1, Failed: 1}, report.Counts)
			assert.Equal(t, []string{"good"}, synth.lastInput())
		})
	}
}

func TestRun_StatusReportScenario(t *testing.T) {
	var synthPrompt atomic.Value
	provider := &fakeProvider{fn: func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "Final Report:"):
			synthPrompt.Store(prompt)
			return "**Status**\n- Subject X: Done\n- Subject Y: Pending", nil
		case strings.Contains(prompt, "Status: Done"):
			return "Done, subject X", nil
		case strings.Contains(prompt, "Status: Pending"):
			return "Pending, subject Y", nil
		}
		return Sentinel, nil
	}}

	cfg := fastConfig()
	report, err := RunPipeline(context.Background(), "status report", cfg, Deps{
		Source: StaticSource{
			{ID: "D1", Content: "Status: Done"},
			{ID: "D2", Content: "Status: Pending"},
			{ID: "D3", Content: ""},
		},
		Extractor:   NewLLMExtractor(provider, nil),
		Synthesizer: NewLLMSynthesizer(provider, nil, cfg.Separator),
	})
	require.NoError(t, err)

	assert.Equal(t, Counts{Total: 3, Informative: 2, Skipped: 1, Failed: 0}, report.Counts)
	assert.Contains(t, report.Text, "Done")
	assert.Contains(t, report.Text, "Pending")

	prompt, _ := synthPrompt.Load().(string)
	assert.Contains(t, prompt, "Done, subject X\n---\nPending, subject Y")
	assert.Less(t, strings.Index(prompt, "Done, subject X"), strings.Index(prompt, "Pending, subject Y"))

	assert.Equal(t, StatusEmpty, report.Outcomes[2].Status)
	// D3 has no content, so only D1, D2 and the synthesis reach the provider.
	assert.EqualValues(t, 3, provider.calls.Load())
}

func TestRun_RetrievalFailure(t *testing.T) {
	tests := []struct {
		name   string
		source DocumentSource
	}{
		{
			name: "provider outage",
			source: SourceFunc(func(ctx context.Context, query string) ([]Document, error) {
				return nil, errors.New("vector store unreachable")
			}),
		},
		{
			name:   "duplicate ids",
			source: StaticSource{{ID: "a", Content: "1"}, {ID: "a", Content: "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynthesizer{}
			o, err := New(tt.source, newFakeExtractor(echoExtraction), synth, fastConfig())
			require.NoError(t, err)

			report, err := o.Run(context.Background(), "q")
			require.Error(t, err)
			assert.Nil(t, report)

			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, StateRetrieving, runErr.State)
			assert.Equal(t, KindRetrieval, runErr.Kind)
			assert.Equal(t, StateFailed, o.State())
			assert.Zero(t, synth.calls)
		})
	}
}

func TestRun_SynthesisFailureIsFatal(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantKind  ErrorKind
		wantCalls int
	}{
		{name: "permanent", err: &llm.StatusError{Provider: "fake", StatusCode: 401}, wantKind: KindPermanentProvider, wantCalls: 1},
		{name: "transient exhausted", err: &llm.StatusError{Provider: "fake", StatusCode: 503}, wantKind: KindTransientProvider, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &fakeSynthesizer{fn: func(ctx context.Context, query string, texts []string) (string, error) {
				return "", tt.err
			}}
			cfg := fastConfig()
			cfg.MaxRetries = 2
			o, err := New(StaticSource(docs(2)), newFakeExtractor(echoExtraction), synth, cfg)
			require.NoError(t, err)

			report, err := o.Run(context.Background(), "q")
			require.Error(t, err)
			assert.Nil(t, report)

			var runErr *RunError
			require.ErrorAs(t, err, &runErr)
			assert.Equal(t, StateReducing, runErr.State)
			assert.Equal(t, tt.wantKind, runErr.Kind)
			assert.Equal(t, tt.wantCalls, synth.calls)
			assert.Equal(t, []State{StateInit, StateRetrieving, StateMapping, StateReducing, StateFailed}, o.Visited())
		})
	}
}

func blockOn(id string) extractFunc {
	return func(ctx context.Context, query string, doc Document) (Extraction, error) {
		if doc.ID == id {
			<-ctx.Done()
			return Extraction{}, ctx.Err()
		}
		return Extraction{Status: StatusInformative, Text: "fact:" + doc.ID}, nil
	}
}

func TestRun_RunTimeoutAbortsMapping(t *testing.T) {
	synth := &fakeSynthesizer{}
	cfg := fastConfig()
	cfg.RunTimeout = 50 * time.Millisecond

	o, err := New(StaticSource(docs(3)), newFakeExtractor(blockOn("d01")), synth, cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrRunTimeout)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StateMapping, runErr.State)
	assert.Equal(t, KindRunTimeout, runErr.Kind)
	assert.Zero(t, synth.calls)
}

func TestRun_RunTimeoutDuringRetrieval(t *testing.T) {
	source := SourceFunc(func(ctx context.Context, query string) ([]Document, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	synth := &fakeSynthesizer{}
	cfg := fastConfig()
	cfg.RunTimeout = 50 * time.Millisecond
	cfg.AllowPartialOnTimeout = true

	o, err := New(source, newFakeExtractor(echoExtraction), synth, cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.Error(t, err)
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrRunTimeout)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StateRetrieving, runErr.State)
	assert.Equal(t, KindRunTimeout, runErr.Kind)
	assert.Equal(t, []State{StateInit, StateRetrieving, StateFailed}, o.Visited())
	assert.Zero(t, synth.calls)
}

func TestRun_RunTimeoutWithPartialResults(t *testing.T) {
	synth := &fakeSynthesizer{fn: func(ctx context.Context, query string, texts []string) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", llm.Permanent(err)
		}
		return "partial report", nil
	}}
	cfg := fastConfig()
	cfg.RunTimeout = 50 * time.Millisecond
	cfg.AllowPartialOnTimeout = true

	o, err := New(StaticSource(docs(3)), newFakeExtractor(blockOn("d01")), synth, cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)

	assert.Equal(t, []string{"fact:d00", "fact:d02"}, synth.lastInput())
	assert.Equal(t, StatusFailed, report.Outcomes[1].Status)
	assert.Equal(t, Counts{Total: 3, Informative: 2, Failed: 1}, report.Counts)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, "partial report", report.Text)
}

func TestRun_BlankInformativeExtractionIsSkipped(t *testing.T) {
	synth := &fakeSynthesizer{}
	ext := newFakeExtractor(func(ctx context.Context, query string, doc Document) (Extraction, error) {
		switch doc.ID {
		case "d00":
			return Extraction{Status: StatusInformative, Text: "  \n"}, nil
		case "d01":
			return Extraction{Status: StatusInformative, Text: "NO_INFO"}, nil
		}
		return Extraction{Status: StatusInformative, Text: "fact:" + doc.ID}, nil
	})

	o, err := New(StaticSource(docs(3)), ext, synth, fastConfig())
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"fact:d02"}, synth.lastInput())
	assert.Equal(t, Counts{Total: 3, Informative: 1, Skipped: 2}, report.Counts)
	assert.Equal(t, StatusEmpty, report.Outcomes[0].Status)
	assert.Empty(t, report.Outcomes[0].Text)
}

func TestRun_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ext := newFakeExtractor(func(c context.Context, query string, doc Document) (Extraction, error) {
		cancel()
		<-c.Done()
		return Extraction{}, c.Err()
	})

	cfg := fastConfig()
	cfg.AllowPartialOnTimeout = true
	o, err := New(StaticSource(docs(4)), ext, &fakeSynthesizer{}, cfg)
	require.NoError(t, err)

	_, err = o.Run(ctx, "q")
	require.Error(t, err)
	assert.Equal(t, KindCanceled, KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_ShortCircuitOnEmpty(t *testing.T) {
	synth := &fakeSynthesizer{}
	ext := newFakeExtractor(func(ctx context.Context, query string, doc Document) (Extraction, error) {
		return Extraction{Status: StatusEmpty}, nil
	})

	cfg := fastConfig()
	cfg.ShortCircuitOnEmpty = true
	o, err := New(StaticSource(docs(2)), ext, synth, cfg)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, report.ShortCircuited)
	assert.Equal(t, DefaultEmptyReportText, report.Text)
	assert.Zero(t, synth.calls)
	assert.Equal(t, Counts{Total: 2, Skipped: 2}, report.Counts)
}

func TestRun_RejectsEmptyQueryAndReuse(t *testing.T) {
	o, err := New(StaticSource(docs(1)), newFakeExtractor(echoExtraction), &fakeSynthesizer{}, fastConfig())
	require.NoError(t, err)

	_, err = o.Run(context.Background(), "   ")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, KindInvalidInput, KindOf(err))
	assert.Equal(t, StateInit, o.State())

	_, err = o.Run(context.Background(), "q")
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestRun_TransitionHook(t *testing.T) {
	var seen []State
	o, err := New(StaticSource(docs(2)), newFakeExtractor(echoExtraction), &fakeSynthesizer{}, fastConfig(),
		WithRunID("run-1"),
		WithTransitionHook(func(runID string, to State) {
			assert.Equal(t, "run-1", runID)
			seen = append(seen, to)
		}),
	)
	require.NoError(t, err)

	report, err := o.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, []State{StateRetrieving, StateMapping, StateReducing, StateDone}, seen)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, newFakeExtractor(echoExtraction), &fakeSynthesizer{}, fastConfig())
	assert.ErrorIs(t, err, ErrInvalidInput)

	cfg := fastConfig()
	cfg.MaxRetries = -1
	_, err = New(StaticSource(nil), newFakeExtractor(echoExtraction), &fakeSynthesizer{}, cfg)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
