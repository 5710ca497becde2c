package analytics

import (
	"context"
	"errors"
	"sort"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/memstore"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

type memBoard struct {
	seen   map[string]bool
	scores map[string]int
	fail   error
}

func newMemBoard() *memBoard {
	return &memBoard{seen: map[string]bool{}, scores: map[string]int{}}
}

func (b *memBoard) Record(_ context.Context, id, member string, by int) (bool, error) {
	if b.fail != nil {
		return false, b.fail
	}
	if b.seen[id] {
		return false, nil
	}
	b.seen[id] = true
	b.scores[member] += by
	return true, nil
}

func (b *memBoard) Top(_ context.Context, n int) ([]redisx.Score, error) {
	out := make([]redisx.Score, 0, len(b.scores))
	for m, s := range b.scores {
		out = append(out, redisx.Score{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

type capture struct{ msgs []kafkago.Message }

func (c *capture) Publish(key, value []byte, headers ...kafkago.Header) {
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func emit(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	c := &capture{}
	e := &kafkax.Emitter{P: c, ServiceName: "test"}
	e.Emit([]byte("u1"), eventType, "cart-1", payload)
	return c.msgs[0]
}

func TestHandleCartEventCountsAddsOnce(t *testing.T) {
	board := newMemBoard()
	svc := &Service{Board: board, Log: zap.NewNop()}
	ctx := context.Background()

	added := emit(t, shop.EventCartLineAdded, shop.CartLinePayload{UserID: "u1", ProductID: "P1", Delta: 2, Quantity: 2})
	for i := 0; i < 2; i++ { // redelivery
		if err := svc.HandleCartEvent(ctx, added); err != nil {
			t.Fatal(err)
		}
	}
	other := emit(t, shop.EventCartLineAdded, shop.CartLinePayload{UserID: "u1", ProductID: "P1", Delta: 1, Quantity: 3})
	_ = svc.HandleCartEvent(ctx, other)
	set := emit(t, shop.EventCartLineQuantitySet, shop.CartLinePayload{UserID: "u1", ProductID: "P1", Quantity: 9})
	_ = svc.HandleCartEvent(ctx, set)

	if board.scores["P1"] != 3 {
		t.Fatalf("want 3 units, got %d", board.scores["P1"])
	}
}

func TestHandleCartEventSkipsUndecodable(t *testing.T) {
	board := newMemBoard()
	svc := &Service{Board: board, Log: zap.NewNop()}
	if err := svc.HandleCartEvent(context.Background(), kafkago.Message{Value: []byte("nope")}); err != nil {
		t.Fatalf("undecodable message should be skipped, got %v", err)
	}
	if len(board.scores) != 0 {
		t.Fatalf("scores: %v", board.scores)
	}
}

func TestHandleCartEventRetriesAfterBoardFailure(t *testing.T) {
	board := newMemBoard()
	svc := &Service{Board: board, Log: zap.NewNop()}
	ctx := context.Background()
	added := emit(t, shop.EventCartLineAdded, shop.CartLinePayload{UserID: "u1", ProductID: "P1", Delta: 2, Quantity: 2})

	board.fail = errors.New("redis: connection refused")
	if err := svc.HandleCartEvent(ctx, added); err == nil {
		t.Fatal("want error while the board is down")
	}
	board.fail = nil
	if err := svc.HandleCartEvent(ctx, added); err != nil {
		t.Fatal(err)
	}
	if board.scores["P1"] != 2 {
		t.Fatalf("redelivered event must count once: got %d", board.scores["P1"])
	}
}

func TestMostCarted(t *testing.T) {
	board := newMemBoard()
	board.scores["P1"] = 3
	board.scores["P2"] = 7
	st := memstore.New()
	st.AddProduct(shop.Product{ID: "P2", Name: "Mug"})
	svc := &Service{Board: board, Products: st, Log: zap.NewNop()}
	ctx := context.Background()

	if _, err := svc.MostCarted(ctx, shop.Viewer{UserID: "c", Role: shop.RoleCustomer}, 5); !errors.Is(err, shop.ErrForbidden) {
		t.Fatalf("want Forbidden, got %v", err)
	}
	got, err := svc.MostCarted(ctx, shop.Viewer{UserID: "a", Role: shop.RoleAdmin}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ProductID != "P2" || got[0].Name != "Mug" || got[0].Units != 7 || got[1].Name != "" {
		t.Fatalf("got %+v", got)
	}
}
