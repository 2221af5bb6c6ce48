// Package testtoken creates compact tokens for tests. The tokens carry a
// valid HS256 signature with a fixed key, which the code under test ignores.
package testtoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var signingKey = []byte("docflow-test-key")

// Sign returns a compact token carrying claims
func Sign(claims jwt.MapClaims) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return s
}

// IDToken returns a cognito style id token expiring at exp.
// groups are added as cognito:groups claim when not nil.
func IDToken(exp time.Time, groups []string) string {
	claims := jwt.MapClaims{
		"sub":              "3f1c1e2a-8a7b-4c1d-9a53-0b7c52d1e001",
		"email":            "jane.doe@example.com",
		"name":             "Jane Doe",
		"cognito:username": "jdoe",
		"exp":              exp.Unix(),
	}
	if groups != nil {
		claims["cognito:groups"] = groups
	}
	return Sign(claims)
}

// AccessToken returns a token with only sub and exp claims
func AccessToken(exp time.Time) string {
	return Sign(jwt.MapClaims{
		"sub":       "3f1c1e2a-8a7b-4c1d-9a53-0b7c52d1e001",
		"token_use": "access",
		"exp":       exp.Unix(),
	})
}
