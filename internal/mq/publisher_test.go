package mq

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/gigbay/internal/events"
)

func TestLocalPublisherHandsOffEnvelope(t *testing.T) {
	got := make(chan events.Envelope, 1)
	pub := NewLocalPublisher(func(ctx context.Context, key string, body []byte) error {
		env, err := events.Decode(body)
		if err != nil {
			return err
		}
		got <- env
		return nil
	}, nil)

	recipient := uuid.New()
	env := events.New(events.BookingConfirmed, recipient, "Booking confirmed", "Your booking was accepted").
		With("booking_id", "b-1")
	require.NoError(t, pub.Publish(context.Background(), env))

	select {
	case e := <-got:
		assert.Equal(t, events.BookingConfirmed, e.Key)
		assert.Equal(t, recipient, e.RecipientID)
		assert.Equal(t, "b-1", e.Data["booking_id"])
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}
}

func TestLocalPublisherWithoutHandler(t *testing.T) {
	pub := NewLocalPublisher(nil, nil)
	assert.NoError(t, pub.Publish(context.Background(), events.New(events.TrackingStarted, uuid.New(), "", "")))
}
