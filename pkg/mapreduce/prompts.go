package mapreduce

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// Sentinel is the marker an extraction returns for an irrelevant document.
const Sentinel = "NO_INFO"

const defaultExtractPrompt = `You are a data analyst extracting key points for a larger report.
Analyze the following document chunk strictly based on the user's query.

User Query: {{.Query}}
Document Chunk: {{.Content}}

Instructions:
1. Extract every single relevant metric, date, subject, and status.
2. Do not summarize broadly; capture specific details.
3. If the chunk has no relevant info, return "{{.Sentinel}}".

Extracted Details:
`

const defaultSynthesizePrompt = `You are a professional report writer. Below is a collection of extracted details from various project documents.
Your job is to synthesize these into a robust, structured report.

User Query: {{.Query}}

Extracted Details from Search:
{{.Details}}

Report Guidelines:
1. Group related topics together.
2. Highlight contradictions if any (e.g., one doc says 'Done' and another says 'Pending').
3. Use professional formatting (Bullet points, Bold headers).
4. Ignore any "{{.Sentinel}}" entries.
{{- if not .Details}}
5. No details were extracted. State clearly that no relevant information was found.
{{- end}}

Final Report:
`

// Prompts holds the extraction and synthesis templates.
type Prompts struct {
	extract    *template.Template
	synthesize *template.Template
}

type promptFile struct {
	Extract    string `yaml:"extract"`
	Synthesize string `yaml:"synthesize"`
}

type extractVars struct {
	Query    string
	Title    string
	Content  string
	Sentinel string
}

type synthesizeVars struct {
	Query    string
	Details  string
	Count    int
	Sentinel string
}

// DefaultPrompts returns the built-in templates.
func DefaultPrompts() *Prompts {
	p, err := NewPrompts(defaultExtractPrompt, defaultSynthesizePrompt)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPrompts parses the two templates. An empty template falls back to the
// built-in one.
func NewPrompts(extract, synthesize string) (*Prompts, error) {
	if strings.TrimSpace(extract) == "" {
		extract = defaultExtractPrompt
	}
	if strings.TrimSpace(synthesize) == "" {
		synthesize = defaultSynthesizePrompt
	}

	et, err := template.New("extract").Option("missingkey=error").Parse(extract)
	if err != nil {
		return nil, fmt.Errorf("parse extract prompt: %w", err)
	}
	st, err := template.New("synthesize").Option("missingkey=error").Parse(synthesize)
	if err != nil {
		return nil, fmt.Errorf("parse synthesize prompt: %w", err)
	}
	return &Prompts{extract: et, synthesize: st}, nil
}

// LoadPrompts reads template overrides from a YAML file with optional
// "extract" and "synthesize" keys. An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	var pf promptFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("decode prompts file %s: %w", path, err)
	}
	return NewPrompts(pf.Extract, pf.Synthesize)
}

func (p *Prompts) renderExtract(query string, doc Document) (string, error) {
	var buf bytes.Buffer
	err := p.extract.Execute(&buf, extractVars{
		Query:    query,
		Title:    doc.Title,
		Content:  doc.Content,
		Sentinel: Sentinel,
	})
	if err != nil {
		return "", fmt.Errorf("render extract prompt: %w", err)
	}
	return buf.String(), nil
}

func (p *Prompts) renderSynthesize(query string, texts []string, separator string) (string, error) {
	var buf bytes.Buffer
	err := p.synthesize.Execute(&buf, synthesizeVars{
		Query:    query,
		Details:  strings.Join(texts, separator),
		Count:    len(texts),
		Sentinel: Sentinel,
	})
	if err != nil {
		return "", fmt.Errorf("render synthesize prompt: %w", err)
	}
	return buf.String(), nil
}
