// Package settings holds the store-wide keyed settings: the free-shipping
// threshold and the app bar text.
package settings

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/shop"
)

// Cache is implemented by *redisx.Cache.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Service struct {
	Store            shop.SettingStore
	Cache            Cache // optional
	Log              *zap.Logger
	Timeout          time.Duration
	DefaultThreshold decimal.Decimal
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// get reads a setting through the cache. A missing setting reports
// found=false.
func (s *Service) get(ctx context.Context, key string) (value string, found bool, err error) {
	ck := redisx.SettingKey(key)
	if s.Cache != nil {
		var cached *string
		hit, err := s.Cache.GetJSON(ctx, ck, &cached)
		switch {
		case err != nil:
			s.Log.Warn("settings cache read", zap.String("key", key), zap.Error(err))
		case hit && cached == nil:
			return "", false, nil
		case hit:
			return *cached, true, nil
		}
	}

	st, err := s.Store.Setting(ctx, key)
	var cached *string
	switch {
	case errors.Is(err, shop.ErrNotFound):
	case err != nil:
		return "", false, shop.StoreErr(err)
	default:
		cached = &st.Value
	}
	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, ck, cached, redisx.TTLSetting); err != nil {
			s.Log.Warn("settings cache write", zap.String("key", key), zap.Error(err))
		}
	}
	if cached == nil {
		return "", false, nil
	}
	return *cached, true, nil
}

func (s *Service) put(ctx context.Context, key, value string) error {
	if _, err := s.Store.PutSetting(ctx, key, value); err != nil {
		return shop.StoreErr(err)
	}
	if s.Cache != nil {
		if err := s.Cache.Del(ctx, redisx.SettingKey(key)); err != nil {
			s.Log.Warn("settings cache invalidate", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

// ShippingThreshold is the order subtotal that earns free shipping. An unset
// or unusable stored value falls back to DefaultThreshold.
func (s *Service) ShippingThreshold(ctx context.Context) (decimal.Decimal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, found, err := s.get(ctx, shop.SettingShippingThreshold)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if !found {
		return s.DefaultThreshold, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || !d.IsPositive() {
		s.Log.Warn("ignoring stored shipping threshold", zap.String("value", raw))
		return s.DefaultThreshold, nil
	}
	return d, nil
}

func (s *Service) SetShippingThreshold(ctx context.Context, v shop.Viewer, threshold decimal.Decimal) (decimal.Decimal, error) {
	if err := v.RequireSupervisor(); err != nil {
		return decimal.Decimal{}, err
	}
	if !threshold.IsPositive() {
		return decimal.Decimal{}, shop.InvalidInput("shipping threshold must be positive")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	threshold = threshold.Round(2)
	if err := s.put(ctx, shop.SettingShippingThreshold, threshold.String()); err != nil {
		return decimal.Decimal{}, err
	}
	s.Log.Info("shipping threshold updated", zap.String("by", v.UserID), zap.String("threshold", threshold.String()))
	return threshold, nil
}

func (s *Service) AppbarText(ctx context.Context) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	text, _, err := s.get(ctx, shop.SettingAppbarText)
	return text, err
}

func (s *Service) SetAppbarText(ctx context.Context, v shop.Viewer, text string) (string, error) {
	if err := v.RequireSupervisor(); err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", shop.InvalidInput("app bar text must not be empty")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.put(ctx, shop.SettingAppbarText, text); err != nil {
		return "", err
	}
	s.Log.Info("app bar text updated", zap.String("by", v.UserID))
	return text, nil
}
