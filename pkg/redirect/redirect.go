package redirect

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
)

const (
	LockKey = "auth_redirect_lock"
	Window  = 1500 * time.Millisecond
)

type (
	Option func(*Guard)

	// Guard is a short lived debounce marker in tab scoped storage. While
	// locked, authentication checks must not start another login navigation.
	Guard struct {
		store  storage.Storage
		now    func() time.Time
		window time.Duration
		log    *log.Logger
	}
)

func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

func WithWindow(d time.Duration) Option {
	return func(g *Guard) {
		g.window = d
	}
}

// New creates a guard. A nil store yields a guard which is never locked.
func New(tabStore storage.Storage, opts ...Option) *Guard {
	ret := &Guard{
		store:  tabStore,
		now:    time.Now,
		window: Window,
		log:    log.Default().Named("redirect"),
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

// Locked reports whether a lock was set less than the window ago
func (g *Guard) Locked(ctx context.Context) bool {
	if g.store == nil {
		return false
	}
	val, err := g.store.Get(ctx, LockKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			g.log.Warn("could not read redirect lock", log.ErrorField(err))
		}
		return false
	}
	ts, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false
	}
	age := g.now().UnixMilli() - ts
	return age < g.window.Milliseconds()
}

func (g *Guard) Lock(ctx context.Context) {
	if g.store == nil {
		return
	}
	val := strconv.FormatInt(g.now().UnixMilli(), 10)
	// the backend ttl only tidies up, Locked still checks the timestamp
	if err := storage.SetWithTTL(ctx, g.store, LockKey, val, g.window); err != nil {
		g.log.Warn("could not set redirect lock", log.ErrorField(err))
	}
}

func (g *Guard) Unlock(ctx context.Context) {
	if g.store == nil {
		return
	}
	if err := g.store.Remove(ctx, LockKey); err != nil {
		g.log.Warn("could not clear redirect lock", log.ErrorField(err))
	}
}
