package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"orderdocs/internal/model"
)

const redisKeyPrefix = "doc:"

// RedisStore persists documents as JSON strings under doc:<orderId>.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(addr string) *RedisStore {
	r := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
	})
	return &RedisStore{rdb: r}
}

// NewRedisStoreWith wraps an existing client (tests, custom options).
func NewRedisStoreWith(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Close() error { return s.rdb.Close() }

func redisKey(orderID int64) string {
	return redisKeyPrefix + strconv.FormatInt(orderID, 10)
}

func (s *RedisStore) Upsert(ctx context.Context, doc model.OrderDocument) error {
	b, err := json.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal document %d: %w", doc.OrderID, err)
	}
	if err := s.rdb.Set(ctx, redisKey(doc.OrderID), b, 0).Err(); err != nil {
		return fmt.Errorf("redis set %d: %w", doc.OrderID, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, orderID int64) error {
	// DEL on an absent key is a no-op, which is exactly the contract.
	if err := s.rdb.Del(ctx, redisKey(orderID)).Err(); err != nil {
		return fmt.Errorf("redis del %d: %w", orderID, err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, orderID int64) (model.OrderDocument, bool, error) {
	b, err := s.rdb.Get(ctx, redisKey(orderID)).Bytes()
	if err == redis.Nil {
		return model.OrderDocument{}, false, nil
	}
	if err != nil {
		return model.OrderDocument{}, false, fmt.Errorf("redis get %d: %w", orderID, err)
	}
	var doc model.OrderDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.OrderDocument{}, false, fmt.Errorf("unmarshal document %d: %w", orderID, err)
	}
	return doc, true, nil
}

func (s *RedisStore) FindAll(ctx context.Context) ([]model.OrderDocument, error) {
	var out []model.OrderDocument
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		b, err := s.rdb.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // deleted between scan and get
		}
		if err != nil {
			return nil, fmt.Errorf("redis get %s: %w", key, err)
		}
		var doc model.OrderDocument
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", key, err)
		}
		out = append(out, doc)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return out, nil
}

func (s *RedisStore) Count(ctx context.Context) (int64, error) {
	var n int64
	iter := s.rdb.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return n, nil
}
