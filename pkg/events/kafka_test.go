package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-drive-api/pkg/config"
)

type writerStub struct {
	failures int
	messages []kafka.Message
	closed   bool
}

func (w *writerStub) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *writerStub) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherRetriesAndKeysByDrive(t *testing.T) {
	writer := &writerStub{failures: 1}
	publisher := NewKafkaPublisher(writer, 3, nil)
	publisher.backoff = time.Millisecond

	event := ActivityEvent{ID: "a-1", DriveID: "drive-1", Action: "upload", OccurredAt: time.Now()}
	require.NoError(t, publisher.PublishActivity(context.Background(), event))
	require.Len(t, writer.messages, 1)
	require.Equal(t, "drive-1", string(writer.messages[0].Key))

	var decoded ActivityEvent
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	require.Equal(t, "upload", decoded.Action)
}

func TestKafkaPublisherGivesUpAndClose(t *testing.T) {
	writer := &writerStub{failures: 10}
	publisher := NewKafkaPublisher(writer, 2, nil)
	publisher.backoff = time.Millisecond

	require.Error(t, publisher.PublishActivity(context.Background(), ActivityEvent{DriveID: "d"}))

	require.NoError(t, publisher.Close())
	require.True(t, writer.closed)
	require.ErrorIs(t, publisher.PublishActivity(context.Background(), ActivityEvent{DriveID: "d"}), ErrPublisherClosed)
}

func TestNewDisabledReturnsNop(t *testing.T) {
	require.IsType(t, NopPublisher{}, New(config.EventsConfig{Enabled: false}, nil))
}
