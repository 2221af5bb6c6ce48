package idp

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/config"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/tokenstore"
)

const (
	PendingKey = "auth_pending_login"
	// PendingTimeout limits how long a started login may be completed
	PendingTimeout = 10 * time.Minute
)

var (
	ErrStateNotFound = errors.New("state not found")
	ErrStateMismatch = errors.New("state mismatch")
	ErrNoIDToken     = errors.New("no id_token in token response")
	ErrExchange      = errors.New("code exchange failed")
)

//nolint:tagliatelle // stored format
type (
	PendingLogin struct {
		State        string    `json:"state"`
		CodeVerifier string    `json:"code_verifier"`
		ReturnTo     string    `json:"return_to"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Option func(*Client)

	// Client runs the authorization code flow with PKCE against the
	// identity provider and hands the resulting tokens to the token store.
	Client struct {
		cfg            config.AppConfig
		oauth2Config   *oauth2.Config
		logoutEndpoint string
		tab            storage.Storage
		tokens         *tokenstore.Store
		httpClient     *http.Client
		now            func() time.Time
		tracer         trace.Tracer
		log            *log.Logger
	}
)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithClock(now func() time.Time) Option {
	return func(cl *Client) {
		cl.now = now
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(cl *Client) {
		cl.tracer = t
	}
}

// New creates the client. If cfg.IssuerURL is set the endpoints are
// discovered, otherwise the Cognito hosted UI endpoints of cfg.CognitoDomain
// are used.
//
//nolint:whitespace // editor/linter issue
func New(
	ctx context.Context,
	cfg config.AppConfig,
	tab storage.Storage,
	tokens *tokenstore.Store,
	opts ...Option,
) (*Client, error) {
	ret := &Client{
		cfg:    cfg,
		tab:    tab,
		tokens: tokens,
		now:    time.Now,
		log:    log.Default().Named("idp"),
	}
	for _, o := range opts {
		o(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("dfs")
	}
	if tab == nil {
		return nil, fmt.Errorf("tab storage required: %w", storage.ErrUnavailable)
	}
	endpoint, logout, err := ret.resolveEndpoints(ctx)
	if err != nil {
		return nil, err
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	ret.logoutEndpoint = logout
	ret.oauth2Config = &oauth2.Config{
		ClientID:    cfg.ClientID,
		Endpoint:    endpoint,
		RedirectURL: cfg.RedirectURI,
		Scopes:      cfg.Scopes,
	}
	return ret, nil
}

//nolint:whitespace // editor/linter issue
func (c *Client) resolveEndpoints(ctx context.Context) (
	endpoint oauth2.Endpoint, logout string, err error,
) {
	if c.cfg.IssuerURL == "" {
		base := domainURL(c.cfg.CognitoDomain)
		return oauth2.Endpoint{
			AuthURL:  base + "/oauth2/authorize",
			TokenURL: base + "/oauth2/token",
		}, base + "/logout", nil
	}
	provider, err := oidc.NewProvider(c.clientContext(ctx), c.cfg.IssuerURL)
	if err != nil {
		return oauth2.Endpoint{}, "", fmt.Errorf("oidc discovery: %w", err)
	}
	var extra struct {
		EndSessionEndpoint string `json:"end_session_endpoint"` //nolint:tagliatelle // external API
	}
	if err := provider.Claims(&extra); err != nil {
		c.log.Warn("could not read end_session_endpoint", log.ErrorField(err))
	}
	return provider.Endpoint(), extra.EndSessionEndpoint, nil
}

func (c *Client) clientContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return oidc.ClientContext(ctx, c.httpClient)
}

// LoginURL starts a login. The pending state is kept in tab storage until
// the callback is handled.
func (c *Client) LoginURL(ctx context.Context, returnTo string) (string, error) {
	pl := PendingLogin{
		State:        randStringURL(32),
		CodeVerifier: oauth2.GenerateVerifier(),
		ReturnTo:     returnTo,
		CreatedAt:    c.now(),
	}
	data, err := json.Marshal(pl)
	if err != nil {
		return "", err
	}
	if err := storage.SetWithTTL(ctx, c.tab, PendingKey, string(data), PendingTimeout); err != nil {
		c.log.Error("failed to save pending login", log.ErrorField(err))
		return "", err
	}
	return c.oauth2Config.AuthCodeURL(pl.State,
		oauth2.S256ChallengeOption(pl.CodeVerifier)), nil
}

// HandleCallback completes a login started by LoginURL and returns the
// location the user wanted to visit.
//
//nolint:whitespace // editor/linter issue
func (c *Client) HandleCallback(
	ctx context.Context, code, state string,
) (returnTo string, err error) {
	ctx, span := c.tracer.Start(ctx, "idp.HandleCallback")
	defer span.End()

	pl, err := c.pendingLogin(ctx)
	if err != nil {
		return "", err
	}
	if pl.State != state {
		c.log.Warn("callback state does not match pending login")
		return "", ErrStateMismatch
	}
	if err := c.tab.Remove(ctx, PendingKey); err != nil {
		c.log.Warn("could not remove pending login", log.ErrorField(err))
	}

	tok, err := c.oauth2Config.Exchange(
		c.exchangeContext(ctx),
		code,
		oauth2.VerifierOption(pl.CodeVerifier))
	if err != nil {
		c.log.Warn("failed to exchange token", log.ErrorField(err))
		return "", fmt.Errorf("%w: %w", ErrExchange, err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return "", ErrNoIDToken
	}
	if err := c.tokens.Set(ctx, tokenstore.TokenSet{
		IDToken:      rawIDToken,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}); err != nil {
		return "", err
	}
	c.log.Debug("login completed", log.Time("accessTokenExpiry", tok.Expiry))
	if pl.ReturnTo == "" {
		return "/", nil
	}
	return pl.ReturnTo, nil
}

func (c *Client) pendingLogin(ctx context.Context) (*PendingLogin, error) {
	raw, err := c.tab.Get(ctx, PendingKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrStateNotFound
		}
		return nil, err
	}
	var pl PendingLogin
	if err := json.Unmarshal([]byte(raw), &pl); err != nil {
		return nil, ErrStateNotFound
	}
	if c.now().Sub(pl.CreatedAt) > PendingTimeout {
		return nil, ErrStateNotFound
	}
	return &pl, nil
}

func (c *Client) exchangeContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

// LogoutURL returns the hosted logout endpoint. For Cognito the query
// carries client_id and logout_uri, for other providers the OIDC
// end session parameters are used. Empty if the provider has no endpoint.
func (c *Client) LogoutURL(idTokenHint string) string {
	if c.logoutEndpoint == "" {
		return ""
	}
	q := url.Values{}
	q.Set("client_id", c.cfg.ClientID)
	if c.cfg.IssuerURL == "" {
		q.Set("logout_uri", c.cfg.LogoutURI)
	} else {
		q.Set("post_logout_redirect_uri", c.cfg.LogoutURI)
		if idTokenHint != "" {
			q.Set("id_token_hint", idTokenHint)
		}
	}
	sep := "?"
	if strings.Contains(c.logoutEndpoint, "?") {
		sep = "&"
	}
	return c.logoutEndpoint + sep + q.Encode()
}

// Logout clears the local session and returns the URL ending the session
// at the identity provider.
func (c *Client) Logout(ctx context.Context) string {
	hint := ""
	if ts := c.tokens.Get(ctx); ts != nil {
		hint = ts.IDToken
	}
	c.tokens.Clear(ctx)
	return c.LogoutURL(hint)
}

func domainURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimSuffix(domain, "/")
	}
	return "https://" + strings.TrimSuffix(domain, "/")
}

func randStringURL(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)[:n]
}
