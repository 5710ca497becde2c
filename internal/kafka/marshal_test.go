package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

type captured struct {
	key, value []byte
	headers    []kafka.Header
}

type fakePublisher struct{ msgs []captured }

func (f *fakePublisher) Publish(key, value []byte, headers ...kafka.Header) {
	f.msgs = append(f.msgs, captured{key, value, headers})
}

func TestEmitterWrapsEnvelope(t *testing.T) {
	pub := &fakePublisher{}
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	e := &Emitter{P: pub, ServiceName: "storefront-api", Now: func() time.Time { return at }}

	e.Emit(shop.PartitionKey("u1"), shop.EventCartLineAdded, "cart-1",
		shop.CartLinePayload{UserID: "u1", CartID: "cart-1", ProductID: "P1", Delta: 1, Quantity: 3})

	if len(pub.msgs) != 1 {
		t.Fatalf("want 1 message, got %d", len(pub.msgs))
	}
	m := pub.msgs[0]
	if string(m.key) != "u1" {
		t.Fatalf("key: %s", m.key)
	}
	if len(m.headers) != 2 || string(m.headers[0].Value) != shop.EventCartLineAdded || string(m.headers[1].Value) != "1" {
		t.Fatalf("headers: %+v", m.headers)
	}

	env, err := UnmarshalEnvelope(m.value)
	if err != nil {
		t.Fatal(err)
	}
	if env.EventID == "" || env.EventType != shop.EventCartLineAdded || env.Producer != "storefront-api" ||
		env.CorrelationID != "cart-1" || !env.OccurredAt.Equal(at) {
		t.Fatalf("envelope: %+v", env)
	}
	p, err := UnwrapPayload[shop.CartLinePayload](env.Payload)
	if err != nil {
		t.Fatal(err)
	}
	if p.ProductID != "P1" || p.Quantity != 3 || p.Delta != 1 {
		t.Fatalf("payload: %+v", p)
	}
}

func TestUnmarshalEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := UnmarshalEnvelope([]byte("{not json")); err == nil {
		t.Fatal("want error")
	}
}
