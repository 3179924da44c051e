package outbox

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"example.com/streak/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	payload := []byte(`{"user_id":"user-1"}`)
	frame := EncodeWireFormat(513, payload)

	require.Len(t, frame, 5+len(payload))
	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(513), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, payload, frame[5:])
}

func TestDeliverGroupsByTopicAndCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 21}
	logger, _ := test.NewNullLogger()
	dispatcher := NewDispatcher(nil, producer, registry, 0, 10, WithLogger(logger))

	messages := []Message{
		{EventID: 1, EventType: events.TypeActivityRecorded, Topic: "streak_events", SchemaSubject: "streak_events-activity_recorded-value", PartitionKey: "user-1", Payload: []byte(`{"n":1}`)},
		{EventID: 2, EventType: events.TypeActivityRecorded, Topic: "streak_events", SchemaSubject: "streak_events-activity_recorded-value", PartitionKey: "user-2", Payload: []byte(`{"n":2}`)},
		{EventID: 3, EventType: events.TypeStreakReset, Topic: "streak_events", SchemaSubject: "streak_events-reset-value", PartitionKey: "user-1", Payload: []byte(`{"n":3}`)},
	}

	require.NoError(t, dispatcher.deliver(context.Background(), messages))

	require.Len(t, producer.writes, 1)
	batch := producer.writes[0]
	require.Equal(t, "streak_events", batch.topic)
	require.Len(t, batch.messages, 3)
	require.Equal(t, "user-1", string(batch.messages[0].Key))
	require.Equal(t, EncodeWireFormat(21, []byte(`{"n":1}`)), batch.messages[0].Value)
	require.Contains(t, batch.messages[2].Headers, kafka.Header{Key: "event_type", Value: []byte(events.TypeStreakReset)})

	// one registry call per subject
	require.Len(t, registry.calls, 2)
}

func TestDeliverFailsOnUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{}
	dispatcher := NewDispatcher(nil, producer, registry, 0, 10)

	err := dispatcher.deliver(context.Background(), []Message{{EventType: "streak.unknown", Topic: "streak_events"}})
	require.ErrorContains(t, err, "no schema metadata for event_type=streak.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesRegistryErrors(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{err: errors.New("registry down")}
	dispatcher := NewDispatcher(nil, producer, registry, 0, 10)

	err := dispatcher.deliver(context.Background(), []Message{{EventType: events.TypeStreakReset, Topic: "streak_events", SchemaSubject: "s"}})
	require.ErrorContains(t, err, "registry down")
	require.Empty(t, producer.writes)
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)

	s.writes = append(s.writes, writtenBatch{
		topic:    topic,
		messages: copied,
	})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
