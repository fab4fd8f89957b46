package mapreduce

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPrompts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	content := "extract: |\n  Q={{.Query}} DOC={{.Content}} ELSE={{.Sentinel}}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	p, err := LoadPrompts(path)
	require.NoError(t, err)

	out, err := p.renderExtract("who", Document{Content: "body"})
	require.NoError(t, err)
	assert.Equal(t, "Q=who DOC=body ELSE=NO_INFO\n", out)

	// synthesize falls back to the built-in template
	out, err = p.renderSynthesize("who", []string{"a", "b"}, "|")
	require.NoError(t, err)
	assert.Contains(t, out, "a|b")
	assert.Contains(t, out, "Final Report:")
}

func TestLoadPrompts_Errors(t *testing.T) {
	_, err := LoadPrompts(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extract: \"{{.Query\"\n"), 0o600))
	_, err = LoadPrompts(path)
	assert.Error(t, err)
}

func TestLoadPrompts_EmptyPathUsesDefaults(t *testing.T) {
	p, err := LoadPrompts("")
	require.NoError(t, err)
	out, err := p.renderExtract("q", Document{Content: "c"})
	require.NoError(t, err)
	assert.Contains(t, out, "Extracted Details:")
}
