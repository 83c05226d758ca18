package mq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type recordedAck struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (r *recordedAck) Ack(bool) error {
	r.acked = true
	return nil
}

func (r *recordedAck) Nack(_ bool, requeue bool) error {
	r.nacked = true
	r.requeue = requeue
	return nil
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func testConsumer() *Consumer {
	return &Consumer{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestDeliverAcksAndTraces(t *testing.T) {
	rec := withRecorder(t)
	ack := &recordedAck{}
	var sawSpan bool

	testConsumer().deliver(context.Background(), "booking.confirmed", []byte(`{}`), false, ack,
		func(ctx context.Context, key string, body []byte) error {
			sawSpan = trace.SpanFromContext(ctx).SpanContext().IsValid()
			return nil
		})

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
	assert.True(t, sawSpan)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "mq.consume booking.confirmed", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestDeliverFailureRequeuesOnce(t *testing.T) {
	rec := withRecorder(t)
	failing := func(context.Context, string, []byte) error { return errors.New("mongo unavailable") }

	first := &recordedAck{}
	testConsumer().deliver(context.Background(), "payment.released", nil, false, first, failing)
	assert.True(t, first.nacked)
	assert.True(t, first.requeue)

	second := &recordedAck{}
	testConsumer().deliver(context.Background(), "payment.released", nil, true, second, failing)
	assert.True(t, second.nacked)
	assert.False(t, second.requeue, "a redelivered failure is dead-lettered")

	spans := rec.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, codes.Error, s.Status().Code)
		assert.Equal(t, "mongo unavailable", s.Status().Description)
	}
}
