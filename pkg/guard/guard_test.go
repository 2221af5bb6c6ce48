package guard

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/mpapenbr/docflow-session-go/pkg/permission"
	"github.com/mpapenbr/docflow-session-go/pkg/redirect"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/impl/memory"
	"github.com/mpapenbr/docflow-session-go/pkg/tokenstore"
	"github.com/mpapenbr/docflow-session-go/testsupport/testtoken"
)

type recordingNavigator struct {
	location string
	visited  []string
}

func (n *recordingNavigator) Location() string { return n.location }
func (n *recordingNavigator) Navigate(u string) { n.visited = append(n.visited, u) }

type replacingNavigator struct {
	recordingNavigator
	replaced []string
}

func (n *replacingNavigator) Replace(u string) { n.replaced = append(n.replaced, u) }

type fixture struct {
	guard  *Guard
	store  *tokenstore.Store
	clock  *time.Time
	reader *sdkmetric.ManualReader
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	now := time.Unix(1_800_000_000, 0)
	f := &fixture{clock: &now, reader: sdkmetric.NewManualReader()}
	clock := func() time.Time { return *f.clock }
	lock := redirect.New(memory.NewStorage(nil), redirect.WithClock(clock))
	f.store = tokenstore.New(memory.NewStorage(nil), lock, tokenstore.WithClock(clock))
	opts = append([]Option{
		WithMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(f.reader))),
	}, opts...)
	f.guard = New(session.New(f.store), lock, opts...)
	return f
}

func (f *fixture) login(t *testing.T, groups []string) {
	t.Helper()
	require.NoError(t, f.store.Set(context.Background(), tokenstore.TokenSet{
		IDToken:     testtoken.IDToken(f.clock.Add(time.Hour), groups),
		AccessToken: testtoken.AccessToken(f.clock.Add(time.Hour)),
	}))
}

func (f *fixture) redirectCount(t *testing.T) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, f.reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "dfs.guard.redirects" {
				continue
			}
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestRequireAuthNoSession(t *testing.T) {
	f := newFixture(t)
	nav := &recordingNavigator{location: "/doc/42"}
	ctx := context.Background()

	assert.Nil(t, f.guard.State().CurrentUser(ctx))
	assert.False(t, f.guard.RequireAuthOrRedirect(ctx, nav, "/doc/42"))
	require.Len(t, nav.visited, 1)
	assert.Equal(t, "/login?returnTo=%2Fdoc%2F42", nav.visited[0])

	u, err := url.Parse(nav.visited[0])
	require.NoError(t, err)
	assert.Equal(t, "/doc/42", u.Query().Get("returnTo"))
	assert.Equal(t, int64(1), f.redirectCount(t))
}

func TestRequireAuthDebounce(t *testing.T) {
	f := newFixture(t)
	nav := &recordingNavigator{location: "/doc/42"}
	ctx := context.Background()

	assert.False(t, f.guard.RequireAuthOrRedirect(ctx, nav, "/doc/42"))
	*f.clock = f.clock.Add(1499 * time.Millisecond)
	assert.False(t, f.guard.RequireAuthOrRedirect(ctx, nav, "/doc/42"))
	assert.Len(t, nav.visited, 1, "second check within window must not navigate")

	*f.clock = f.clock.Add(time.Millisecond)
	assert.False(t, f.guard.RequireAuthOrRedirect(ctx, nav, "/doc/42"))
	assert.Len(t, nav.visited, 2, "after the window a new redirect is issued")
}

func TestCheckAuthDecisions(t *testing.T) {
	tests := []struct {
		name     string
		loggedIn bool
		location string
		want     Decision
	}{
		{name: "login path", location: "/login", want: Allow},
		{name: "login path with query", location: "/login?returnTo=%2F", want: Allow},
		{name: "login url", location: "https://app.example.com/login/", want: Allow},
		{name: "callback path", location: "/auth/callback?code=abc", want: Allow},
		{name: "logged in", loggedIn: true, location: "/doc/1", want: Allow},
		{name: "no session", location: "/doc/1", want: RedirectTo("/login?returnTo=%2Fdoc%2F1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.loggedIn {
				f.login(t, nil)
			}
			assert.Equal(t, tt.want, f.guard.CheckAuth(context.Background(), tt.location, "/doc/1"))
		})
	}
}

func TestLoginPathNeverNavigates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	nav := &recordingNavigator{location: "/login"}
	for range 3 {
		assert.True(t, f.guard.RequireAuthOrRedirect(ctx, nav, "/doc/1"))
	}
	assert.Empty(t, nav.visited)
	assert.False(t, f.guard.lock.Locked(ctx))
}

func TestBlockedWhileLocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.guard.lock.Lock(ctx)
	d := f.guard.CheckAuth(ctx, "/doc/1", "/doc/1")
	assert.Equal(t, Blocked, d)
	assert.False(t, d.MayProceed())
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name      string
		groups    []string
		loggedIn  bool
		required  []session.Role
		want      bool
		wantVisit []string
	}{
		{
			name:      "not logged in",
			required:  []session.Role{session.RoleApprover},
			wantVisit: []string{"/login?returnTo=%2Fapprovals"},
		},
		{
			name:     "approver",
			loggedIn: true,
			groups:   []string{"Approver"},
			required: []session.Role{session.RoleApprover},
			want:     true,
		},
		{
			name:     "one of several",
			loggedIn: true,
			required: []session.Role{session.RoleSubmitter, session.RoleApprover},
			want:     true,
		},
		{
			name:      "submitter on approver page",
			loggedIn:  true,
			required:  []session.Role{session.RoleApprover},
			wantVisit: []string{"/unauthorized"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.loggedIn {
				f.login(t, tt.groups)
			}
			nav := &recordingNavigator{location: "/approvals"}
			got := f.guard.RequireRoleOrRedirect(context.Background(), nav, tt.required, "/approvals")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantVisit, nav.visited)
		})
	}
}

func TestCheckRoleInLoginFlow(t *testing.T) {
	tests := []struct {
		name     string
		location string
		loggedIn bool
		groups   []string
		want     Decision
	}{
		{
			name:     "no session on login path",
			location: "/login",
			want:     RedirectTo(DefaultUnauthorizedPath),
		},
		{
			name:     "submitter on login path",
			location: "/login?returnTo=%2Fapprovals",
			loggedIn: true,
			groups:   []string{"Staff"},
			want:     RedirectTo(DefaultUnauthorizedPath),
		},
		{
			name:     "approver on callback path",
			location: "/auth/callback?code=abc",
			loggedIn: true,
			groups:   []string{"Approver"},
			want:     Allow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.loggedIn {
				f.login(t, tt.groups)
			}
			ctx := context.Background()
			d := f.guard.CheckRole(ctx, tt.location,
				[]session.Role{session.RoleApprover}, "/approvals")
			assert.Equal(t, tt.want, d)
			assert.False(t, f.guard.lock.Locked(ctx), "no login redirect from the login flow")
		})
	}
}

func TestRequirePermission(t *testing.T) {
	pe, err := permission.NewOpaPermissionEvaluator()
	require.NoError(t, err)
	f := newFixture(t, WithPermissionEvaluator(pe))
	f.login(t, []string{"Approver"})
	ctx := context.Background()

	nav := &recordingNavigator{location: "/queue"}
	assert.True(t, f.guard.RequirePermissionOrRedirect(ctx, nav,
		permission.PermissionViewApprovalQueue, "", "/queue"))
	assert.False(t, f.guard.RequirePermissionOrRedirect(ctx, nav,
		permission.PermissionSubmitDocument, "", "/submit"))
	assert.Equal(t, []string{"/unauthorized"}, nav.visited)
}

func TestRequirePermissionWithoutEvaluator(t *testing.T) {
	f := newFixture(t)
	f.login(t, []string{"Approver"})
	d := f.guard.CheckPermission(context.Background(), "/queue",
		permission.PermissionViewApprovalQueue, "", "/queue")
	assert.Equal(t, RedirectTo(DefaultUnauthorizedPath), d)
}

func TestApplyPrefersReplace(t *testing.T) {
	nav := &replacingNavigator{}
	assert.False(t, Apply(nav, RedirectTo("/login")))
	assert.Equal(t, []string{"/login"}, nav.replaced)
	assert.Empty(t, nav.visited)

	assert.True(t, Apply(nav, Allow))
	assert.False(t, Apply(nav, Blocked))
	assert.Len(t, nav.replaced, 1)
	assert.False(t, Apply(nil, RedirectTo("/login")))
}

func TestCustomPaths(t *testing.T) {
	f := newFixture(t,
		WithLoginPath("/signin"),
		WithCallbackPath("/cb"),
		WithUnauthorizedPath("/403"))
	ctx := context.Background()
	assert.Equal(t, Allow, f.guard.CheckAuth(ctx, "/cb", "/"))
	assert.Equal(t, RedirectTo("/signin?returnTo=%2Fx%3Fa%3D1%26b%3D2"),
		f.guard.CheckAuth(ctx, "/x", "/x?a=1&b=2"))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "allow", Allow.String())
	assert.Equal(t, "blocked", Blocked.String())
	assert.Equal(t, "redirect /login", RedirectTo("/login").String())
}
