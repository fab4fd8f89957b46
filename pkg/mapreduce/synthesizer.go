package mapreduce

import (
	"context"
	"fmt"
	"strings"

	"ai-report-be/pkg/llm"
)

// Synthesizer writes the final report from the ordered informative
// extraction texts. texts may be empty. It makes a single attempt.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, texts []string) (string, error)
}

// LLMSynthesizer joins the extraction texts with a separator and asks an
// inference provider for a grouped report that surfaces contradictions.
type LLMSynthesizer struct {
	provider  llm.LLMProvider
	prompts   *Prompts
	separator string
	opts      []llm.Option
}

var _ Synthesizer = (*LLMSynthesizer)(nil)

func NewLLMSynthesizer(provider llm.LLMProvider, prompts *Prompts, separator string, opts ...llm.Option) *LLMSynthesizer {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	return &LLMSynthesizer{provider: provider, prompts: prompts, separator: separator, opts: opts}
}

func (s *LLMSynthesizer) Synthesize(ctx context.Context, query string, texts []string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", llm.Permanent(fmt.Errorf("%w: empty query", ErrInvalidInput))
	}
	prompt, err := s.prompts.renderSynthesize(query, texts, s.separator)
	if err != nil {
		return "", llm.Permanent(err)
	}
	return s.provider.Generate(ctx, prompt, s.opts...)
}
