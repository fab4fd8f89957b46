package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-report-be/internal/dto"
	"ai-report-be/internal/pkg/logger"
	"ai-report-be/pkg/mapreduce"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsumerService_RunsQueuedReports(t *testing.T) {
	f := newReportFixture(t, threeDocs(), joinSynthesizer{})
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewConsumerService(pubSub, ConsumerConfig{
		IndexTopic:  "INDEX_DOCUMENT",
		ReportTopic: "RUN_REPORT",
	}, &fakeUowFactory{uow: &fakeUow{reports: f.reports}}, nil, f.svc, logger.NewNopLogger())
	require.NoError(t, consumer.Consume(ctx))

	publisher := NewPublisherService("RUN_REPORT", pubSub)

	// Garbage must be acknowledged and skipped.
	require.NoError(t, publisher.Publish(ctx, []byte("{not json")))

	runId := uuid.New()
	payload, err := json.Marshal(dto.RunReportMessage{RunId: runId, Query: "status?", Collection: "default"})
	require.NoError(t, err)
	require.NoError(t, publisher.Publish(ctx, payload))

	require.Eventually(t, func() bool {
		st, found, _ := f.status.Get(ctx, runId.String())
		return found && st.State == mapreduce.StateDone
	}, 5*time.Second, 20*time.Millisecond)

	stored, err := f.reports.FindById(ctx, runId)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "PROJECT X IS DONE|BUDGET IS 10K", stored.Text)
}
