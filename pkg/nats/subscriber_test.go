package nats

import (
	"testing"

	"ai-report-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		raw := []byte(`{"type":"report.requested","occurred_at":"2025-01-02T03:04:05Z","data":{"query":"q1"}}`)

		evt, err := DecodeEvent("events.report.requested", raw)

		require.NoError(t, err)
		assert.Equal(t, events.ReportRequested, evt.Type)
		assert.Equal(t, "q1", evt.String("query"))
		assert.Equal(t, 2025, evt.OccurredAt.Year())
	})

	t.Run("bare payload takes type from subject", func(t *testing.T) {
		evt, err := DecodeEvent("events.report.requested", []byte(`{"query":"q2","collection":"ops"}`))

		require.NoError(t, err)
		assert.Equal(t, events.ReportRequested, evt.Type)
		assert.Equal(t, "q2", evt.String("query"))
		assert.Equal(t, "ops", evt.String("collection"))
		assert.False(t, evt.OccurredAt.IsZero())
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeEvent("events.report.requested", []byte(`not json`))
		assert.Error(t, err)
	})
}
