package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PipelineFromEnv(t *testing.T) {
	t.Setenv("PIPELINE_MAX_CONCURRENCY", "8")
	t.Setenv("PIPELINE_MAX_RETRIES", "0")
	t.Setenv("PIPELINE_RUN_TIMEOUT", "90s")
	t.Setenv("PIPELINE_ALLOW_PARTIAL_ON_TIMEOUT", "true")
	t.Setenv("RETRIEVAL_THRESHOLD", "0.5")

	cfg := Load()
	assert.Equal(t, 8, cfg.Pipeline.MaxConcurrency)
	assert.Equal(t, 0, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.RunTimeout)
	assert.True(t, cfg.Pipeline.AllowPartialOnTimeout)
	assert.InDelta(t, 0.5, cfg.Retrieval.Threshold, 1e-9)

	mr := cfg.Pipeline.MapReduce()
	require.NoError(t, mr.Validate())
	assert.Equal(t, 8, mr.MaxConcurrency)
	assert.Equal(t, 90*time.Second, mr.RunTimeout)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PIPELINE_MAX_CONCURRENCY", "many")
	t.Setenv("PIPELINE_PER_CALL_TIMEOUT", "soon")
	t.Setenv("RETRIEVAL_ENABLE_VECTOR", "maybe")

	cfg := Load()
	assert.Equal(t, 5, cfg.Pipeline.MaxConcurrency)
	assert.Equal(t, 60*time.Second, cfg.Pipeline.PerCallTimeout)
	assert.True(t, cfg.Retrieval.EnableVector)
}
