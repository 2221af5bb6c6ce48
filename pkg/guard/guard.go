package guard

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/permission"
	"github.com/mpapenbr/docflow-session-go/pkg/redirect"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
)

const (
	DefaultLoginPath        = "/login"
	DefaultCallbackPath     = "/auth/callback"
	DefaultUnauthorizedPath = "/unauthorized"
)

type (
	Option func(*Guard)

	// Guard answers whether a view may render. It never navigates itself,
	// see Apply for the adapter performing the navigation.
	Guard struct {
		state            *session.State
		lock             *redirect.Guard
		perms            permission.PermissionEvaluator
		loginPath        string
		callbackPath     string
		unauthorizedPath string
		meterProvider    metric.MeterProvider
		redirects        metric.Int64Counter
		log              *log.Logger
	}
)

func WithLoginPath(p string) Option {
	return func(g *Guard) {
		g.loginPath = p
	}
}

func WithCallbackPath(p string) Option {
	return func(g *Guard) {
		g.callbackPath = p
	}
}

func WithUnauthorizedPath(p string) Option {
	return func(g *Guard) {
		g.unauthorizedPath = p
	}
}

func WithPermissionEvaluator(pe permission.PermissionEvaluator) Option {
	return func(g *Guard) {
		g.perms = pe
	}
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(g *Guard) {
		g.meterProvider = mp
	}
}

//nolint:whitespace // editor/linter issue
func New(
	state *session.State, lock *redirect.Guard, opts ...Option,
) *Guard {
	ret := &Guard{
		state:            state,
		lock:             lock,
		loginPath:        DefaultLoginPath,
		callbackPath:     DefaultCallbackPath,
		unauthorizedPath: DefaultUnauthorizedPath,
		log:              log.Default().Named("guard"),
	}
	for _, o := range opts {
		o(ret)
	}
	if ret.meterProvider == nil {
		ret.meterProvider = otel.GetMeterProvider()
	}
	var err error
	ret.redirects, err = ret.meterProvider.Meter("dfs").Int64Counter("dfs.guard.redirects",
		metric.WithDescription("navigations issued by session guards"))
	if err != nil {
		ret.log.Warn("could not create redirect counter", log.ErrorField(err))
	}
	return ret
}

func (g *Guard) State() *session.State {
	return g.state
}

// LoginURL returns the login path with returnTo as query parameter
func (g *Guard) LoginURL(returnTo string) string {
	return g.loginPath + "?returnTo=" + url.QueryEscape(returnTo)
}

func (g *Guard) UnauthorizedURL() string {
	return g.unauthorizedPath
}

// CheckAuth decides whether a view at location requiring a session may
// render. A redirect to login is issued at most once per lock window.
//
//nolint:whitespace // editor/linter issue
func (g *Guard) CheckAuth(
	ctx context.Context, location, returnTo string,
) Decision {
	if g.InLoginFlow(location) {
		return Allow
	}
	if g.state.LoggedIn(ctx) {
		return Allow
	}
	return g.LoginDecision(ctx, returnTo)
}

// LoginDecision returns Blocked while the redirect lock is active.
// Otherwise it sets the lock and returns the redirect to login.
func (g *Guard) LoginDecision(ctx context.Context, returnTo string) Decision {
	if g.lock.Locked(ctx) {
		g.log.Debug("redirect suppressed, lock active")
		return Blocked
	}
	g.lock.Lock(ctx)
	g.count(ctx, "login")
	return RedirectTo(g.LoginURL(returnTo))
}

// CheckRole requires a session whose role is one of roles
//
//nolint:whitespace // editor/linter issue
func (g *Guard) CheckRole(
	ctx context.Context, location string, roles []session.Role, returnTo string,
) Decision {
	if d := g.CheckAuth(ctx, location, returnTo); !d.MayProceed() {
		return d
	}
	if g.state.HasRole(ctx, roles...) {
		return Allow
	}
	g.log.Debug("role not sufficient", log.Any("required", roles))
	g.count(ctx, "unauthorized")
	return RedirectTo(g.unauthorizedPath)
}

// CheckPermission requires a session allowed to perform perm on a document
// owned by objectOwner. An empty objectOwner ignores ownership.
//
//nolint:whitespace // editor/linter issue
func (g *Guard) CheckPermission(
	ctx context.Context,
	location string,
	perm permission.Permission,
	objectOwner string,
	returnTo string,
) Decision {
	if d := g.CheckAuth(ctx, location, returnTo); !d.MayProceed() {
		return d
	}
	if g.perms != nil &&
		g.perms.HasObjectPermission(g.state.CurrentUser(ctx), perm, objectOwner) {
		return Allow
	}
	g.log.Debug("permission denied", log.String("perm", string(perm)))
	g.count(ctx, "unauthorized")
	return RedirectTo(g.unauthorizedPath)
}

// InLoginFlow reports whether location is the login or the callback path
func (g *Guard) InLoginFlow(location string) bool {
	p := pathOf(location)
	return p == pathOf(g.loginPath) || p == pathOf(g.callbackPath)
}

func (g *Guard) count(ctx context.Context, target string) {
	if g.redirects != nil {
		g.redirects.Add(ctx, 1, metric.WithAttributes(attribute.String("target", target)))
	}
}

// pathOf returns the normalized path of a location which may be a full URL
func pathOf(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil {
		p = u.Path
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
