// Package rates implements currency conversion from cached exchange rates.
//
// A rate is the value of one unit of a currency expressed in the base
// currency. The base currency has rate 1. Converting amount from A to B is
// amount * rate(A) / rate(B).
//
// Lookups go through an in-process cache first, then an optional shared cache
// (Redis), then a Source. ConvertSync only ever reads the in-process cache and
// never blocks.
package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no rate can be found for a currency.
var ErrUnavailable = errors.New("rate unavailable")

// Source fetches the current rate of a currency.
type Source interface {
	Rate(ctx context.Context, currency string) (decimal.Decimal, error)
}

// Cache stores rates shared between processes.
type Cache interface {
	// Get returns the cached rate. A miss is (zero, false, nil).
	Get(ctx context.Context, currency string) (decimal.Decimal, bool, error)
	Set(ctx context.Context, currency string, rate decimal.Decimal) error
}

// Option configures a Service.
type Option func(*Service)

// WithSource sets where missing rates are fetched from.
func WithSource(src Source) Option { return func(s *Service) { s.source = src } }

// WithSharedCache sets a second level cache, typically a RedisCache.
func WithSharedCache(c Cache) Option { return func(s *Service) { s.shared = c } }

// WithTTL sets how long rates stay in the in-process cache.
func WithTTL(ttl time.Duration) Option { return func(s *Service) { s.memory.ttl = ttl } }

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option { return func(s *Service) { s.log = log } }

// Service is the currency conversion service.
type Service struct {
	base   string
	memory *MemoryCache
	shared Cache
	source Source
	log    zerolog.Logger

	// fetching serializes source fetches so concurrent misses on the same
	// currency hit the source once.
	fetching sync.Mutex
}

// NewService returns a service converting through base.
func NewService(base string, opts ...Option) *Service {
	s := &Service{
		base:   normalize(base),
		memory: NewMemoryCache(24 * time.Hour),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Base returns the base currency.
func (s *Service) Base() string { return s.base }

func normalize(currency string) string { return strings.ToUpper(strings.TrimSpace(currency)) }

// Prime stores a known rate in the in-process cache.
func (s *Service) Prime(currency string, rate decimal.Decimal) {
	s.memory.put(normalize(currency), rate)
}

// cached returns a rate from the in-process cache only.
func (s *Service) cached(currency string) (decimal.Decimal, bool) {
	currency = normalize(currency)
	if currency == s.base {
		return decimal.NewFromInt(1), true
	}
	return s.memory.get(currency)
}

// Rate returns the rate of currency, fetching it when it is not cached.
func (s *Service) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	currency = normalize(currency)
	if r, ok := s.cached(currency); ok {
		return r, nil
	}

	s.fetching.Lock()
	defer s.fetching.Unlock()
	// another caller may have fetched it while we waited.
	if r, ok := s.cached(currency); ok {
		return r, nil
	}

	if s.shared != nil {
		r, ok, err := s.shared.Get(ctx, currency)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("currency", currency).Msg("shared rate cache unavailable")
		case ok:
			s.memory.put(currency, r)
			return r, nil
		}
	}
	if s.source == nil {
		return decimal.Zero, fmt.Errorf("%s: %w", currency, ErrUnavailable)
	}
	r, err := s.source.Rate(ctx, currency)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w: %w", currency, ErrUnavailable, err)
	}
	if !r.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %w: non positive rate %v", currency, ErrUnavailable, r)
	}
	s.memory.put(currency, r)
	if s.shared != nil {
		if err := s.shared.Set(ctx, currency, r); err != nil {
			s.log.Warn().Err(err).Str("currency", currency).Msg("cannot share rate")
		}
	}
	s.log.Debug().Str("currency", currency).Stringer("rate", r).Msg("rate fetched")
	return r, nil
}

// ConvertSync converts amount using cached rates only. It reports false on a
// cache miss.
func (s *Service) ConvertSync(amount decimal.Decimal, from, to string) (decimal.Decimal, bool) {
	if normalize(from) == normalize(to) {
		return amount, true
	}
	rf, ok := s.cached(from)
	if !ok {
		return decimal.Zero, false
	}
	rt, ok := s.cached(to)
	if !ok {
		return decimal.Zero, false
	}
	return convert(amount, rf, rt), true
}

// Convert converts amount, fetching missing rates.
func (s *Service) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if normalize(from) == normalize(to) {
		return amount, nil
	}
	rf, err := s.Rate(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rt, err := s.Rate(ctx, to)
	if err != nil {
		return decimal.Zero, err
	}
	return convert(amount, rf, rt), nil
}

func convert(amount, from, to decimal.Decimal) decimal.Decimal {
	return amount.Mul(from).Div(to)
}
