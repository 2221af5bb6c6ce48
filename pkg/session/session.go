package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/token"
	"github.com/mpapenbr/docflow-session-go/pkg/tokenstore"
)

type Role string

const (
	RoleSubmitter Role = "Submitter"
	RoleApprover  Role = "Approver"
)

// ApproverGroup is the group name which grants RoleApprover
const ApproverGroup = "Approver"

type (
	User struct {
		DisplayName string   `json:"displayName" yaml:"displayName"`
		Email       string   `json:"email"       yaml:"email"`
		Role        Role     `json:"role"        yaml:"role"`
		Groups      []string `json:"groups"      yaml:"groups"`
		Sub         string   `json:"sub"         yaml:"sub"`
	}

	// State derives the current user from the stored id token on every call.
	// Nothing is cached, so the result always matches the stored tokens.
	State struct {
		tokens *tokenstore.Store
		log    *log.Logger
	}
)

func ParseRole(s string) (Role, error) {
	for _, r := range []Role{RoleSubmitter, RoleApprover} {
		if strings.EqualFold(s, string(r)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// RoleFromGroups returns RoleApprover if groups contain ApproverGroup.
// Every other group is ignored and yields RoleSubmitter.
func RoleFromGroups(groups []string) Role {
	if lo.Contains(groups, ApproverGroup) {
		return RoleApprover
	}
	return RoleSubmitter
}

// UserFromClaims builds the user of an id token
func UserFromClaims(c *token.Claims) *User {
	return &User{
		DisplayName: displayName(c),
		Email:       c.Email,
		Role:        RoleFromGroups(c.Groups),
		Groups:      c.Groups,
		Sub:         c.Sub,
	}
}

func displayName(c *token.Claims) string {
	full := strings.TrimSpace(c.GivenName + " " + c.FamilyName)
	return lo.CoalesceOrEmpty(c.Name, full, c.Username, c.Email, c.Sub)
}

func (u *User) HasRole(roles ...Role) bool {
	return u != nil && lo.Contains(roles, u.Role)
}

func New(tokens *tokenstore.Store) *State {
	return &State{
		tokens: tokens,
		log:    log.Default().Named("session"),
	}
}

func (s *State) Tokens() *tokenstore.Store {
	return s.tokens
}

// CurrentUser returns nil if there is no usable id token. A stored but
// expired or undecodable id token clears the session.
func (s *State) CurrentUser(ctx context.Context) *User {
	ts := s.tokens.Get(ctx)
	if ts == nil {
		return nil
	}
	if ts.IDToken == "" {
		s.tokens.ClearWithReason(ctx, tokenstore.ClearReasonInvalid)
		return nil
	}
	claims := s.tokens.Codec().Decode(ts.IDToken)
	if claims == nil {
		s.log.Debug("id token not decodable")
		s.tokens.ClearWithReason(ctx, tokenstore.ClearReasonInvalid)
		return nil
	}
	if claims.Expired(s.tokens.Now(), tokenstore.ExpiryBuffer) {
		s.log.Debug("id token expired")
		s.tokens.ClearWithReason(ctx, tokenstore.ClearReasonExpired)
		return nil
	}
	return UserFromClaims(claims)
}

func (s *State) LoggedIn(ctx context.Context) bool {
	return s.CurrentUser(ctx) != nil
}

// HasRole reports whether the current user has any of roles
func (s *State) HasRole(ctx context.Context, roles ...Role) bool {
	return s.CurrentUser(ctx).HasRole(roles...)
}
