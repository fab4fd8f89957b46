package mapreduce

import (
	"context"
	"fmt"
	"strings"

	"ai-report-be/pkg/llm"
)

// Extraction is the classified result of one successful extraction call.
type Extraction struct {
	Status ExtractionStatus
	Text   string
}

// Extractor maps one document to the facts it holds about the query. It makes
// a single attempt; retries are the caller's concern. Returned errors must be
// classifiable by llm.IsTransient.
type Extractor interface {
	Extract(ctx context.Context, query string, doc Document) (Extraction, error)
}

// LLMExtractor asks an inference provider for an exhaustive factual
// extraction and classifies the answer.
type LLMExtractor struct {
	provider llm.LLMProvider
	prompts  *Prompts
	opts     []llm.Option
}

var _ Extractor = (*LLMExtractor)(nil)

func NewLLMExtractor(provider llm.LLMProvider, prompts *Prompts, opts ...llm.Option) *LLMExtractor {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	return &LLMExtractor{provider: provider, prompts: prompts, opts: opts}
}

func (e *LLMExtractor) Extract(ctx context.Context, query string, doc Document) (Extraction, error) {
	if strings.TrimSpace(query) == "" {
		return Extraction{}, llm.Permanent(fmt.Errorf("%w: empty query", ErrInvalidInput))
	}
	// Nothing to read, nothing to ask about.
	if strings.TrimSpace(doc.Content) == "" {
		return Extraction{Status: StatusEmpty}, nil
	}

	prompt, err := e.prompts.renderExtract(query, doc)
	if err != nil {
		return Extraction{}, llm.Permanent(err)
	}

	raw, err := e.provider.Generate(ctx, prompt, e.opts...)
	if err != nil {
		return Extraction{}, err
	}
	return ClassifyExtraction(raw), nil
}

// ClassifyExtraction turns a raw model answer into an Extraction. A blank
// answer or one consisting only of the sentinel (optionally quoted, with a
// trailing period, in any case) is Empty. Anything else is Informative and
// kept verbatim.
func ClassifyExtraction(raw string) Extraction {
	if IsSentinel(raw) {
		return Extraction{Status: StatusEmpty}
	}
	return Extraction{Status: StatusInformative, Text: raw}
}

// IsSentinel reports whether s carries nothing but the no-information marker.
func IsSentinel(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return true
	}
	t = strings.TrimSuffix(t, ".")
	t = strings.Trim(t, "\"'`*")
	t = strings.TrimSpace(strings.TrimSuffix(t, "."))
	return strings.EqualFold(t, Sentinel)
}
