package kafka

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func UnmarshalEnvelope(b []byte) (shop.Envelope, error) {
	var env shop.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes an envelope payload into T.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}

// Publisher is satisfied by *Producer.
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

// Emitter wraps payloads in the v1 envelope and publishes them.
type Emitter struct {
	P           Publisher
	ServiceName string
	Now         func() time.Time
}

func (e *Emitter) Emit(key []byte, eventType, correlationID string, payload any) {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	env := shop.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      e.ServiceName,
		CorrelationID: correlationID,
		Payload:       MustMarshal(payload),
	}
	e.P.Publish(key, MustMarshal(env),
		kafka.Header{Key: HeaderEventType, Value: []byte(eventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(env.EventVersion))},
	)
}
