package token

import (
	"time"

	"github.com/samber/lo"
)

// Claims holds the payload of a decoded token.
// It is derived on every read and never persisted on its own.
type Claims struct {
	Exp        *time.Time
	Sub        string
	Email      string
	Name       string
	GivenName  string
	FamilyName string
	Username   string
	Groups     []string
	Raw        map[string]any
}

// Expired reports whether the token is no longer usable at now. A token
// counts as expired skew before its exp claim. A missing exp counts as expired.
func (c *Claims) Expired(now time.Time, skew time.Duration) bool {
	if c == nil || c.Exp == nil {
		return true
	}
	return !now.Before(c.Exp.Add(-skew))
}

func (c *Claims) InGroup(group string) bool {
	return c != nil && lo.Contains(c.Groups, group)
}
