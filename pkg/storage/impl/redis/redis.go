package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/factory"
)

var StorageTypeRedis factory.StorageType = "redis"

type (
	Option      func(*redisConfig)
	redisConfig struct {
		client redis.UniversalClient
	}

	// Storage maps keys to "<namespace>:<key>" redis strings
	Storage struct {
		cfg *storage.Config
		rdb redis.UniversalClient
		log *log.Logger
	}
)

var (
	_ storage.Storage   = (*Storage)(nil)
	_ storage.TTLSetter = (*Storage)(nil)
)

func WithClient(client redis.UniversalClient) Option {
	return func(c *redisConfig) {
		c.client = client
	}
}

func New(common []storage.Option, specific []Option) (storage.Storage, error) {
	return NewStorage(common, specific...)
}

func NewStorage(common []storage.Option, specific ...Option) (*Storage, error) {
	own := &redisConfig{}
	for _, o := range specific {
		o(own)
	}
	if own.client == nil {
		return nil, storage.ErrUnavailable
	}
	return &Storage{
		cfg: storage.NewConfig(common...),
		rdb: own.client,
		log: log.Default().Named("storage.redis"),
	}, nil
}

func (s *Storage) key(k string) string {
	return s.cfg.Namespace + ":" + k
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", storage.ErrNotFound
	}
	return val, err
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.SetWithTTL(ctx, key, value, s.cfg.TTL)
}

//nolint:whitespace // editor/linter issue
func (s *Storage) SetWithTTL(
	ctx context.Context, key, value string, ttl time.Duration,
) error {
	// 0 means no expiration for go-redis
	if err := s.rdb.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.log.Warn("redis set failed", log.String("key", key), log.ErrorField(err))
		return err
	}
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}

func init() {
	factory.Register(StorageTypeRedis, New)
}
