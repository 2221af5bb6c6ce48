package guard

import (
	"context"

	"github.com/mpapenbr/docflow-session-go/pkg/permission"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
)

type (
	// Navigator is the host side of navigation, e.g. a router or a CLI
	// printing the target.
	Navigator interface {
		Location() string
		Navigate(url string)
	}
	// Replacer is implemented by navigators supporting history replacement.
	// It is preferred over Navigate.
	Replacer interface {
		Replace(url string)
	}
)

// Apply performs the navigation of d and reports whether the caller may
// proceed.
func Apply(nav Navigator, d Decision) bool {
	if d.Kind == KindRedirect && nav != nil {
		if r, ok := nav.(Replacer); ok {
			r.Replace(d.URL)
		} else {
			nav.Navigate(d.URL)
		}
	}
	return d.MayProceed()
}

//nolint:whitespace // editor/linter issue
func (g *Guard) RequireAuthOrRedirect(
	ctx context.Context, nav Navigator, returnTo string,
) bool {
	return Apply(nav, g.CheckAuth(ctx, location(nav), returnTo))
}

//nolint:whitespace // editor/linter issue
func (g *Guard) RequireRoleOrRedirect(
	ctx context.Context, nav Navigator, roles []session.Role, returnTo string,
) bool {
	return Apply(nav, g.CheckRole(ctx, location(nav), roles, returnTo))
}

//nolint:whitespace // editor/linter issue
func (g *Guard) RequirePermissionOrRedirect(
	ctx context.Context,
	nav Navigator,
	perm permission.Permission,
	objectOwner string,
	returnTo string,
) bool {
	return Apply(nav, g.CheckPermission(ctx, location(nav), perm, objectOwner, returnTo))
}

// RedirectToLogin navigates to login unless the redirect lock is active
func (g *Guard) RedirectToLogin(ctx context.Context, nav Navigator, returnTo string) {
	Apply(nav, g.LoginDecision(ctx, returnTo))
}

func location(nav Navigator) string {
	if nav == nil {
		return ""
	}
	return nav.Location()
}
