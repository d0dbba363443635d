// Package redis implements core.OrderBookBackend against a shared Redis
// instance, adapted from the teacher's pkg/backend/redis/redis_backend.go:
// a sorted set of price levels per side plus a per-level collection of
// resting order ids, with each order's full state kept as a JSON blob
// under its own key. Unlike the teacher's Set-backed price levels (which
// do not need ordering for its OCO/stop bookkeeping), price levels here
// use a Redis List so FIFO time priority survives a round trip through
// Redis.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/silvermoon-h/matching-engine-2/pkg/core"
)

// Options configures a Redis connection, mirroring the teacher's
// RedisOptions.
type Options struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &Options{Addr: "localhost:6379"}

// SetDefaultOptions overrides the default connection options.
func SetDefaultOptions(options *Options) { defaultOptions = options }

// NewClient builds a *redis.Client from the default options.
func NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

// Backend implements core.OrderBookBackend backed by Redis.
type Backend struct {
	sync.RWMutex
	client *redis.Client
	ctx    context.Context
	prefix string
	logger *zap.Logger
}

// NewBackend constructs a Redis-backed backend under prefix (so multiple
// engines or environments can share one Redis instance without
// colliding).
func NewBackend(client *redis.Client, prefix string, logger *zap.Logger) *Backend {
	return &Backend{
		client: client,
		ctx:    context.Background(),
		prefix: prefix,
		logger: logger,
	}
}

func (b *Backend) orderKey(key core.OrderKey) string {
	return fmt.Sprintf("%s:order:%d:%d:%d:%d", b.prefix, key.ProductID, key.OrderID, key.ClientID, key.Side)
}

func (b *Backend) sideKey(productID uint32, s core.Side) string {
	if s == core.Buy {
		return fmt.Sprintf("%s:product:%d:bids", b.prefix, productID)
	}
	return fmt.Sprintf("%s:product:%d:asks", b.prefix, productID)
}

func (b *Backend) levelKey(productID uint32, s core.Side, price fpdecimal.Decimal) string {
	return fmt.Sprintf("%s:%s", b.sideKey(productID, s), price.String())
}

func (b *Backend) GetOrder(key core.OrderKey) *core.Order {
	b.RLock()
	defer b.RUnlock()

	data, err := b.client.Get(b.ctx, b.orderKey(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Error("failed to get order", zap.Any("key", key), zap.Error(err))
		}
		return nil
	}

	var order core.Order
	if err := json.Unmarshal(data, &order); err != nil {
		b.logger.Error("failed to unmarshal order", zap.Any("key", key), zap.Error(err))
		return nil
	}
	return &order
}

func (b *Backend) StoreOrder(order *core.Order) error {
	b.Lock()
	defer b.Unlock()

	data, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return b.client.Set(b.ctx, b.orderKey(order.Key), data, 0).Err()
}

func (b *Backend) DeleteOrder(key core.OrderKey) {
	b.Lock()
	defer b.Unlock()

	if err := b.client.Del(b.ctx, b.orderKey(key)).Err(); err != nil {
		b.logger.Error("failed to delete order", zap.Any("key", key), zap.Error(err))
	}
}

func (b *Backend) Bids(productID uint32) core.PriceSide {
	return &redisSide{backend: b, productID: productID, side: core.Buy}
}

func (b *Backend) Asks(productID uint32) core.PriceSide {
	return &redisSide{backend: b, productID: productID, side: core.Sell}
}

func (b *Backend) Clear(productID uint32) {
	b.Lock()
	defer b.Unlock()

	sideKey := b.sideKey(productID, core.Buy)
	prices, err := b.client.ZRange(b.ctx, sideKey, 0, -1).Result()
	if err == nil {
		for _, p := range prices {
			b.client.Del(b.ctx, fmt.Sprintf("%s:%s", sideKey, p))
		}
	}
	b.client.Del(b.ctx, sideKey)

	askKey := b.sideKey(productID, core.Sell)
	prices, err = b.client.ZRange(b.ctx, askKey, 0, -1).Result()
	if err == nil {
		for _, p := range prices {
			b.client.Del(b.ctx, fmt.Sprintf("%s:%s", askKey, p))
		}
	}
	b.client.Del(b.ctx, askKey)

	iter := b.client.Scan(b.ctx, 0, fmt.Sprintf("%s:order:%d:*", b.prefix, productID), 0).Iterator()
	for iter.Next(b.ctx) {
		b.client.Del(b.ctx, iter.Val())
	}
}

// redisSide implements core.PriceSide for one side of one instrument.
type redisSide struct {
	backend   *Backend
	productID uint32
	side      core.Side
}

func (s *redisSide) Prices() []fpdecimal.Decimal {
	sideKey := s.backend.sideKey(s.productID, s.side)

	var members []string
	var err error
	if s.side == core.Buy {
		members, err = s.backend.client.ZRevRange(s.backend.ctx, sideKey, 0, -1).Result()
	} else {
		members, err = s.backend.client.ZRange(s.backend.ctx, sideKey, 0, -1).Result()
	}
	if err != nil {
		s.backend.logger.Error("failed to list price levels", zap.String("sideKey", sideKey), zap.Error(err))
		return nil
	}

	out := make([]fpdecimal.Decimal, 0, len(members))
	for _, m := range members {
		p, err := fpdecimal.FromString(m)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *redisSide) Orders(price fpdecimal.Decimal) []*core.Order {
	ids, err := s.backend.client.LRange(s.backend.ctx, s.backend.levelKey(s.productID, s.side, price), 0, -1).Result()
	if err != nil {
		s.backend.logger.Error("failed to read price level", zap.String("price", price.String()), zap.Error(err))
		return nil
	}

	out := make([]*core.Order, 0, len(ids))
	for _, idStr := range ids {
		key, ok := parseOrderID(s.productID, idStr)
		if !ok {
			continue
		}
		if order := s.backend.GetOrder(key); order != nil {
			out = append(out, order)
		}
	}
	return out
}

func (s *redisSide) Append(order *core.Order) {
	sideKey := s.backend.sideKey(s.productID, s.side)
	levelKey := s.backend.levelKey(s.productID, s.side, order.Price)

	pipe := s.backend.client.Pipeline()
	pipe.ZAdd(s.backend.ctx, sideKey, redis.Z{Score: order.Price.Float64(), Member: order.Price.String()})
	pipe.RPush(s.backend.ctx, levelKey, formatOrderID(order.Key))
	if _, err := pipe.Exec(s.backend.ctx); err != nil {
		s.backend.logger.Error("failed to append order to side", zap.Any("key", order.Key), zap.Error(err))
	}
}

func (s *redisSide) Remove(order *core.Order) bool {
	levelKey := s.backend.levelKey(s.productID, s.side, order.Price)

	removed, err := s.backend.client.LRem(s.backend.ctx, levelKey, 1, formatOrderID(order.Key)).Result()
	if err != nil {
		s.backend.logger.Error("failed to remove order from level", zap.Any("key", order.Key), zap.Error(err))
		return false
	}

	remaining, err := s.backend.client.LLen(s.backend.ctx, levelKey).Result()
	if err == nil && remaining == 0 {
		sideKey := s.backend.sideKey(s.productID, s.side)
		pipe := s.backend.client.Pipeline()
		pipe.ZRem(s.backend.ctx, sideKey, order.Price.String())
		pipe.Del(s.backend.ctx, levelKey)
		pipe.Exec(s.backend.ctx)
	}

	return removed > 0
}

func (s *redisSide) Len() int {
	sideKey := s.backend.sideKey(s.productID, s.side)
	prices, err := s.backend.client.ZRange(s.backend.ctx, sideKey, 0, -1).Result()
	if err != nil {
		return 0
	}
	total := 0
	for _, p := range prices {
		n, err := s.backend.client.LLen(s.backend.ctx, fmt.Sprintf("%s:%s", sideKey, p)).Result()
		if err == nil {
			total += int(n)
		}
	}
	return total
}

// formatOrderID encodes the parts of OrderKey not already implied by the
// list it lives in (the price level key already scopes ProductID and
// side) so Orders can reconstruct a full key from a bare list member.
func formatOrderID(key core.OrderKey) string {
	return fmt.Sprintf("%d:%d:%d", key.OrderID, key.ClientID, key.Side)
}

func parseOrderID(productID uint32, s string) (core.OrderKey, bool) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return core.OrderKey{}, false
	}
	var orderID, clientID uint64
	var side int
	if _, err := fmt.Sscanf(parts[0], "%d", &orderID); err != nil {
		return core.OrderKey{}, false
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &clientID); err != nil {
		return core.OrderKey{}, false
	}
	if _, err := fmt.Sscanf(parts[2], "%d", &side); err != nil {
		return core.OrderKey{}, false
	}
	return core.OrderKey{ProductID: productID, OrderID: orderID, ClientID: clientID, Side: core.Side(side)}, true
}
