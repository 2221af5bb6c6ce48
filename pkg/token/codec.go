package token

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ohler55/ojg/jp"
)

const (
	// DefaultGroupsPath addresses the group list of Cognito issued tokens
	DefaultGroupsPath = "$['cognito:groups']"
	// KeycloakGroupsPath addresses the realm roles of Keycloak issued tokens
	KeycloakGroupsPath = "$.realm_access.roles"
)

type (
	Option func(*codecConfig)

	codecConfig struct {
		groupsPath string
	}

	// Codec turns compact tokens into Claims. It never verifies signatures,
	// this is left to the API which receives the token.
	Codec struct {
		parser     *jwt.Parser
		groupsPath jp.Expr
	}
)

var defaultCodec = &Codec{
	parser:     jwt.NewParser(jwt.WithPaddingAllowed()),
	groupsPath: jp.MustParseString(DefaultGroupsPath),
}

func WithGroupsPath(path string) Option {
	return func(c *codecConfig) {
		c.groupsPath = path
	}
}

func NewCodec(opts ...Option) (*Codec, error) {
	cfg := &codecConfig{groupsPath: DefaultGroupsPath}
	for _, o := range opts {
		o(cfg)
	}
	expr, err := jp.ParseString(cfg.groupsPath)
	if err != nil {
		return nil, err
	}
	return &Codec{parser: jwt.NewParser(jwt.WithPaddingAllowed()), groupsPath: expr}, nil
}

// DefaultCodec reads groups from the cognito:groups claim
func DefaultCodec() *Codec {
	return defaultCodec
}

// Decode uses the default codec
func Decode(raw string) *Claims {
	return defaultCodec.Decode(raw)
}

// Decode returns the payload claims of raw or nil if raw is not a
// well-formed compact token. Only the middle segment is inspected.
func (c *Codec) Decode(raw string) *Claims {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil
	}
	payload, err := c.parser.DecodeSegment(parts[1])
	if err != nil {
		return nil
	}
	var mc jwt.MapClaims
	if err := json.Unmarshal(payload, &mc); err != nil || mc == nil {
		return nil
	}
	return c.fromMap(mc)
}

func (c *Codec) fromMap(mc jwt.MapClaims) *Claims {
	ret := &Claims{Raw: mc}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		t := exp.Time
		ret.Exp = &t
	}
	ret.Sub, _ = mc.GetSubject()
	ret.Email = stringClaim(mc, "email")
	ret.Name = stringClaim(mc, "name")
	ret.GivenName = stringClaim(mc, "given_name")
	ret.FamilyName = stringClaim(mc, "family_name")
	ret.Username = stringClaim(mc, "cognito:username")
	if ret.Username == "" {
		ret.Username = stringClaim(mc, "preferred_username")
	}
	ret.Groups = c.groups(mc)
	return ret
}

// groups collects all strings found at the groups path. Lists are flattened,
// other value types are ignored.
func (c *Codec) groups(mc jwt.MapClaims) []string {
	ret := []string{}
	for _, v := range c.groupsPath.Get(map[string]any(mc)) {
		switch val := v.(type) {
		case string:
			ret = append(ret, val)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					ret = append(ret, s)
				}
			}
		}
	}
	return ret
}

func stringClaim(mc jwt.MapClaims, key string) string {
	if s, ok := mc[key].(string); ok {
		return s
	}
	return ""
}
