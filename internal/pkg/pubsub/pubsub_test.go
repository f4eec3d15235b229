package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventMessages(t *testing.T) {
	events := []string{EventDownsellAccepted, EventFinalized, EventArchived}

	for _, event := range events {
		msg, ok := EventMessages[event]
		assert.True(t, ok, "Event %s should have a message", event)
		assert.NotEmpty(t, msg, "Message for %s should not be empty", event)
	}
}

func TestEventMessage_JSON(t *testing.T) {
	msg := &EventMessage{
		Type:           "cancellation_event",
		Event:          EventArchived,
		UserID:         1,
		CancellationID: 2,
		Outcome:        "cancelled",
		ExportURL:      "https://cdn.example.com/exports/cancellations/2.json",
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	// Verify snake_case keys
	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	assert.Contains(t, raw, "user_id")
	assert.Contains(t, raw, "cancellation_id")
	assert.Contains(t, raw, "export_url")

	var decoded EventMessage
	err = json.Unmarshal(data, &decoded)
	require.NoError(t, err)

	assert.Equal(t, msg.UserID, decoded.UserID)
	assert.Equal(t, msg.CancellationID, decoded.CancellationID)
	assert.Equal(t, msg.ExportURL, decoded.ExportURL)
}

func TestEventMessage_OmitEmpty(t *testing.T) {
	msg := &EventMessage{
		Event:  EventFinalized,
		UserID: 1,
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var raw map[string]interface{}
	err = json.Unmarshal(data, &raw)
	require.NoError(t, err)

	_, hasOutcome := raw["outcome"]
	_, hasExportURL := raw["export_url"]
	_, hasMessage := raw["message"]
	assert.False(t, hasOutcome, "empty outcome should be omitted")
	assert.False(t, hasExportURL, "empty export_url should be omitted")
	assert.False(t, hasMessage, "empty message should be omitted")
}

// Integration tests with real Redis (skip if not available)
func TestPublisherSubscriber_Integration(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	defer client.Close()

	publisher := NewPublisher(client)
	subscriber := NewSubscriber(client)

	testCtx, testCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer testCancel()

	received := make(chan *EventMessage, 1)

	go func() {
		subscriber.Subscribe(testCtx, func(msg *EventMessage) {
			received <- msg
		})
	}()

	// Give subscriber time to connect
	time.Sleep(100 * time.Millisecond)

	msg := &EventMessage{
		Event:          EventDownsellAccepted,
		UserID:         123,
		CancellationID: 456,
		Outcome:        "downsell_accepted",
	}

	err := publisher.PublishEvent(testCtx, msg)
	require.NoError(t, err)

	select {
	case receivedMsg := <-received:
		assert.Equal(t, msg.UserID, receivedMsg.UserID)
		assert.Equal(t, msg.CancellationID, receivedMsg.CancellationID)
		assert.Equal(t, "cancellation_event", receivedMsg.Type)
		assert.Equal(t, EventMessages[EventDownsellAccepted], receivedMsg.Message) // Auto-filled
	case <-testCtx.Done():
		t.Fatal("Timeout waiting for message")
	}
}

func TestPublisher_AutoFillMessage(t *testing.T) {
	msg := &EventMessage{
		UserID: 1,
		Event:  EventArchived,
	}

	// Simulate the auto-fill logic from PublishEvent
	if msg.Message == "" && msg.Event != "" {
		if message, ok := EventMessages[msg.Event]; ok {
			msg.Message = message
		}
	}

	assert.Equal(t, EventMessages[EventArchived], msg.Message)
}

func TestNewPublisher(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	defer client.Close()

	publisher := NewPublisher(client)
	assert.NotNil(t, publisher)
}

func TestNewSubscriber(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
	})
	defer client.Close()

	subscriber := NewSubscriber(client)
	assert.NotNil(t, subscriber)
}
