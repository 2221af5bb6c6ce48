package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/factory"
)

var StorageTypeMemory factory.StorageType = "memory"

type (
	Option func(*Storage)

	// Storage keeps entries in process memory. It is the natural backend for
	// tab scoped data which must not outlive the process.
	Storage struct {
		cfg     *storage.Config
		mu      sync.Mutex
		entries map[string]entry
		now     func() time.Time
	}
	entry struct {
		value   string
		expires time.Time
	}
)

var (
	_ storage.Storage   = (*Storage)(nil)
	_ storage.TTLSetter = (*Storage)(nil)
)

func WithClock(now func() time.Time) Option {
	return func(s *Storage) {
		s.now = now
	}
}

func New(common []storage.Option, specific []Option) (storage.Storage, error) {
	return NewStorage(common, specific...), nil
}

func NewStorage(common []storage.Option, specific ...Option) *Storage {
	ret := &Storage{
		cfg:     storage.NewConfig(common...),
		entries: make(map[string]entry),
		now:     time.Now,
	}
	for _, o := range specific {
		o(ret)
	}
	return ret
}

func (s *Storage) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return "", storage.ErrNotFound
	}
	return e.value, nil
}

func (s *Storage) Set(ctx context.Context, key, value string) error {
	return s.SetWithTTL(ctx, key, value, s.cfg.TTL)
}

//nolint:whitespace // editor/linter issue
func (s *Storage) SetWithTTL(
	ctx context.Context, key, value string, ttl time.Duration,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry{value: value}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *Storage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

func init() {
	factory.Register(StorageTypeMemory, New)
}
