package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/redirect"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/token"
)

const (
	TokensKey = "auth_tokens"
	// ExpiryBuffer treats tokens as dead slightly before the server would
	ExpiryBuffer = 60 * time.Second
)

type ClearReason string

const (
	ClearReasonLogout   ClearReason = "logout"
	ClearReasonExpired  ClearReason = "expired"
	ClearReasonInvalid  ClearReason = "invalid"
	ClearReasonRejected ClearReason = "rejected"
)

var ErrStoreFailed = errors.New("could not persist tokens")

type (
	TokenSet struct {
		IDToken      string `json:"idToken"`
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken,omitempty"`
	}

	// AccessTokenResult carries a live access token. SessionCleared is set
	// when the read found an expired token and removed the session.
	AccessTokenResult struct {
		Token          string
		SessionCleared bool
	}

	Option func(*Store)

	// Store owns the persisted TokenSet. Other components read through it
	// and only change tokens via Set and Clear.
	Store struct {
		durable storage.Storage
		lock    *redirect.Guard
		codec   *token.Codec
		now     func() time.Time
		onClear []func(ClearReason)
		log     *log.Logger
	}
)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func WithCodec(c *token.Codec) Option {
	return func(s *Store) {
		s.codec = c
	}
}

// WithClearListener registers f to be called after every clear
func WithClearListener(f func(ClearReason)) Option {
	return func(s *Store) {
		s.onClear = append(s.onClear, f)
	}
}

// New creates a Store. A nil durable storage models an execution context
// without persistent storage: reads return nothing and writes fail.
//
//nolint:whitespace // editor/linter issue
func New(
	durable storage.Storage, lock *redirect.Guard, opts ...Option,
) *Store {
	if lock == nil {
		lock = redirect.New(nil)
	}
	ret := &Store{
		durable: durable,
		lock:    lock,
		codec:   token.DefaultCodec(),
		now:     time.Now,
		log:     log.Default().Named("tokenstore"),
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

func (s *Store) Available() bool {
	return s.durable != nil
}

func (s *Store) Codec() *token.Codec {
	return s.codec
}

func (s *Store) Now() time.Time {
	return s.now()
}

// Get returns the stored tokens or nil. It never modifies storage.
func (s *Store) Get(ctx context.Context) *TokenSet {
	if s.durable == nil {
		return nil
	}
	raw, err := s.durable.Get(ctx, TokensKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.log.Warn("could not read tokens", log.ErrorField(err))
		}
		return nil
	}
	var ts TokenSet
	if err := json.Unmarshal([]byte(raw), &ts); err != nil {
		s.log.Debug("ignoring unparsable token set", log.ErrorField(err))
		return nil
	}
	return &ts
}

// Set persists tokens and releases a pending redirect lock
func (s *Store) Set(ctx context.Context, tokens TokenSet) error {
	if s.durable == nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, storage.ErrUnavailable)
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	if err := s.durable.Set(ctx, TokensKey, string(data)); err != nil {
		s.log.Error("could not store tokens", log.ErrorField(err))
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	s.lock.Unlock(ctx)
	return nil
}

// Clear removes tokens and the redirect lock. Safe to call repeatedly.
func (s *Store) Clear(ctx context.Context) {
	s.ClearWithReason(ctx, ClearReasonLogout)
}

func (s *Store) ClearWithReason(ctx context.Context, reason ClearReason) {
	if s.durable != nil {
		if err := s.durable.Remove(ctx, TokensKey); err != nil {
			s.log.Warn("could not remove tokens", log.ErrorField(err))
		}
	}
	s.lock.Unlock(ctx)
	s.log.Debug("session cleared", log.String("reason", string(reason)))
	for _, f := range s.onClear {
		f(reason)
	}
}

// AccessToken returns the live access token. An expired token clears the
// session, which is reported in the result.
func (s *Store) AccessToken(ctx context.Context) AccessTokenResult {
	ts := s.Get(ctx)
	if ts == nil || ts.AccessToken == "" {
		return AccessTokenResult{}
	}
	if s.IsExpired(ts.AccessToken) {
		s.ClearWithReason(ctx, ClearReasonExpired)
		return AccessTokenResult{SessionCleared: true}
	}
	return AccessTokenResult{Token: ts.AccessToken}
}

// IsExpired is true if raw cannot be decoded, has no exp claim or expires
// within ExpiryBuffer.
func (s *Store) IsExpired(raw string) bool {
	return s.codec.Decode(raw).Expired(s.now(), ExpiryBuffer)
}
