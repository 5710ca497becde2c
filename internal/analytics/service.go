// Package analytics projects cart events into a most-carted leaderboard.
package analytics

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Board is implemented by *redisx.Leaderboard.
type Board interface {
	// Record counts by units for member once per eventID.
	Record(ctx context.Context, eventID, member string, by int) (bool, error)
	Top(ctx context.Context, n int) ([]redisx.Score, error)
}

type Service struct {
	Board    Board
	Products shop.ProductStore // optional, names the leaderboard entries
	Log      *zap.Logger
}

type Entry struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Units     int    `json:"units"`
}

const (
	defaultTop = 10
	maxTop     = 100
)

// HandleCartEvent is the consumer handler for the cart topic. Messages that
// cannot be decoded are logged and skipped; an error is returned only for
// failures worth retrying.
func (s *Service) HandleCartEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.Log.Warn("undecodable cart event skipped", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != shop.EventCartLineAdded {
		return nil
	}
	p, err := kafkax.UnwrapPayload[shop.CartLinePayload](env.Payload)
	if err != nil {
		s.Log.Warn("undecodable cart payload skipped", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.Delta <= 0 {
		return nil
	}

	counted, err := s.Board.Record(ctx, env.EventID, p.ProductID, p.Delta)
	if err != nil {
		return err
	}
	if !counted {
		s.Log.Debug("duplicate event skipped", zap.String("event_id", env.EventID))
	}
	return nil
}

// MostCarted returns the products added to carts most often. limit is
// clamped to [1, 100] with 10 as the default.
func (s *Service) MostCarted(ctx context.Context, v shop.Viewer, limit int) ([]Entry, error) {
	if err := v.RequireSupervisor(); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultTop
	case limit > maxTop:
		limit = maxTop
	}
	scores, err := s.Board.Top(ctx, limit)
	if err != nil {
		return nil, shop.StoreErr(err)
	}
	out := make([]Entry, len(scores))
	ids := make([]string, len(scores))
	for i, sc := range scores {
		out[i] = Entry{ProductID: sc.Member, Units: sc.Score}
		ids[i] = sc.Member
	}
	if s.Products == nil || len(ids) == 0 {
		return out, nil
	}
	products, err := s.Products.ProductsByIDs(ctx, ids)
	if err != nil {
		s.Log.Warn("most-carted names unavailable", zap.Error(err))
		return out, nil
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	for i := range out {
		out[i].Name = names[out[i].ProductID]
	}
	return out, nil
}
