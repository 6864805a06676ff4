package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yashrajoria/basket-service/models"
)

const basketKeyPrefix = "basket:user:"

// RedisAdapter is a Redis-backed BasketStore. Each basket is a JSON string
// under basket:user:<userName> with a sliding TTL refreshed on every save.
type RedisAdapter struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisAdapter(client *redis.Client, ttl time.Duration) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisAdapter) getKey(userName string) string {
	return basketKeyPrefix + userName
}

func (r *RedisAdapter) GetBasket(ctx context.Context, userName string) (*models.Basket, bool, error) {
	data, err := r.client.Get(ctx, r.getKey(userName)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storeErr("get", err)
	}

	b, err := decodeBasketJSON(data)
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// ListBaskets walks the key space with SCAN; keys that expire between SCAN
// and GET are skipped.
func (r *RedisAdapter) ListBaskets(ctx context.Context) ([]*models.Basket, error) {
	baskets := []*models.Basket{}
	iter := r.client.Scan(ctx, 0, basketKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, storeErr("list", err)
		}
		b, err := decodeBasketJSON(data)
		if err != nil {
			zap.L().Warn("skipping unreadable basket record", zap.String("key", iter.Val()), zap.Error(err))
			continue
		}
		baskets = append(baskets, b)
	}
	if err := iter.Err(); err != nil {
		return nil, storeErr("list", err)
	}
	return baskets, nil
}

func (r *RedisAdapter) SaveBasket(ctx context.Context, basket *models.Basket) error {
	data, err := json.Marshal(basket)
	if err != nil {
		return storeErr("put", fmt.Errorf("marshal basket: %w", err))
	}
	if err := r.client.Set(ctx, r.getKey(basket.UserName), data, r.ttl).Err(); err != nil {
		return storeErr("put", err)
	}
	return nil
}

func (r *RedisAdapter) DeleteBasket(ctx context.Context, userName string) error {
	if err := r.client.Del(ctx, r.getKey(userName)).Err(); err != nil {
		return storeErr("delete", err)
	}
	return nil
}

func decodeBasketJSON(data []byte) (*models.Basket, error) {
	var b models.Basket
	if err := json.Unmarshal(data, &b); err != nil {
		if errors.Is(err, models.ErrMalformedBasket) {
			return nil, err
		}
		return nil, storeErr("decode", err)
	}
	return &b, nil
}
