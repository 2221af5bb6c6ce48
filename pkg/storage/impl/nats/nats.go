package nats

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/factory"
)

var StorageTypeNats factory.StorageType = "nats"

type (
	Option     func(*natsConfig)
	natsConfig struct {
		nc           *nats.Conn
		bucketPrefix string
	}

	// Storage keeps the entries in a JetStream key value bucket. Each
	// namespace gets its own bucket so the bucket TTL can differ between
	// durable and tab scoped data.
	Storage struct {
		cfg *storage.Config
		own *natsConfig
		log *log.Logger
		kv  jetstream.KeyValue
	}
)

var _ storage.Storage = (*Storage)(nil)

func WithNATS(nc *nats.Conn) Option {
	return func(c *natsConfig) {
		c.nc = nc
	}
}

func WithBucketPrefix(prefix string) Option {
	return func(c *natsConfig) {
		c.bucketPrefix = prefix
	}
}

func New(common []storage.Option, specific []Option) (storage.Storage, error) {
	return NewStorage(common, specific...)
}

func NewStorage(common []storage.Option, specific ...Option) (*Storage, error) {
	own := &natsConfig{bucketPrefix: "dfs_"}
	for _, o := range specific {
		o(own)
	}
	if own.nc == nil {
		return nil, storage.ErrUnavailable
	}
	ret := &Storage{
		cfg: storage.NewConfig(common...),
		own: own,
		log: log.Default().Named("storage.nats"),
	}
	if err := ret.init(); err != nil {
		return nil, err
	}
	ret.log.Debug("Initialized NATS storage", log.String("bucket", ret.Bucket()))
	return ret, nil
}

func (s *Storage) Bucket() string {
	return s.own.bucketPrefix + s.cfg.Namespace
}

func (s *Storage) init() error {
	js, err := jetstream.New(s.own.nc)
	if err != nil {
		return err
	}
	s.kv, err = js.CreateOrUpdateKeyValue(context.Background(), jetstream.KeyValueConfig{
		Bucket: s.Bucket(),
		TTL:    s.cfg.TTL,
	})
	return err
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	kve, err := s.kv.Get(ctx, composeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return "", storage.ErrNotFound
		}
		return "", err
	}
	return string(kve.Value()), nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	rev, err := s.kv.Put(ctx, composeKey(key), []byte(value))
	if err == nil {
		s.log.Debug("entry written", log.String("key", key), log.Uint64("rev", rev))
	}
	return err
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	err := s.kv.Delete(ctx, composeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// nats kv keys may not contain ':' or spaces
func composeKey(key string) string {
	return strings.NewReplacer(":", "_", " ", "_").Replace(key)
}

func init() {
	factory.Register(StorageTypeNats, New)
}

// Connect opens a named NATS connection
func Connect(url string, timeout time.Duration) (*nats.Conn, error) {
	return nats.Connect(url, nats.Timeout(timeout), nats.Name("dfs"))
}
