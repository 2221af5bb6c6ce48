package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/docflow-session-go/testsupport/testtoken"
)

func compact(payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(`{"alg":"none"}`)) + "." +
		enc.EncodeToString([]byte(payload)) + ".sig"
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "single segment", raw: "abc"},
		{name: "two segments", raw: "abc.def"},
		{name: "four segments", raw: "a.b.c.d"},
		{name: "empty payload", raw: "a..c"},
		{name: "payload not base64", raw: "a.!!!.c"},
		{name: "payload not json", raw: "a." + base64.RawURLEncoding.EncodeToString([]byte("hello")) + ".c"},
		{name: "payload json array", raw: compact(`[1,2]`)},
		{name: "payload json number", raw: compact(`42`)},
		{name: "payload json null", raw: compact(`null`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Nil(t, Decode(tt.raw))
			})
		})
	}
}

func TestDecodeIgnoresHeaderAndSignature(t *testing.T) {
	c := Decode("garbage." + base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`)) + ".")
	require.NotNil(t, c)
	assert.Equal(t, "x", c.Sub)
}

func TestDecodePayloadEncoding(t *testing.T) {
	payload := []byte(`{"sub":"x"}`)
	require.Contains(t, base64.URLEncoding.EncodeToString(payload), "=")
	tests := []struct {
		name    string
		segment string
	}{
		{name: "unpadded", segment: base64.RawURLEncoding.EncodeToString(payload)},
		{name: "padded", segment: base64.URLEncoding.EncodeToString(payload)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Decode("h." + tt.segment + ".s")
			require.NotNil(t, c)
			assert.Equal(t, "x", c.Sub)
		})
	}
}

func TestDecodeNonNumericExp(t *testing.T) {
	c := Decode(compact(`{"sub":"x","exp":"1900000000"}`))
	require.NotNil(t, c)
	assert.Nil(t, c.Exp)
	assert.True(t, c.Expired(time.Unix(1_000_000_000, 0), time.Minute))
}

func TestDecodeCognitoToken(t *testing.T) {
	exp := time.Unix(1_900_000_000, 0)
	raw := testtoken.IDToken(exp, []string{"Approver", "Other"})
	got := Decode(raw)
	require.NotNil(t, got)

	want := &Claims{
		Exp:      &exp,
		Sub:      "3f1c1e2a-8a7b-4c1d-9a53-0b7c52d1e001",
		Email:    "jane.doe@example.com",
		Name:     "Jane Doe",
		Username: "jdoe",
		Groups:   []string{"Approver", "Other"},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Claims{}, "Raw")); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, got.InGroup("Approver"))
	assert.False(t, got.InGroup("approver"))
}

func TestDecodeGroups(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   []string
	}{
		{
			name:   "missing claim",
			claims: jwt.MapClaims{"sub": "a"},
			want:   []string{},
		},
		{
			name:   "single string",
			claims: jwt.MapClaims{"cognito:groups": "Approver"},
			want:   []string{"Approver"},
		},
		{
			name:   "mixed entries",
			claims: jwt.MapClaims{"cognito:groups": []any{"a", 1, true, "b"}},
			want:   []string{"a", "b"},
		},
		{
			name:   "object is ignored",
			claims: jwt.MapClaims{"cognito:groups": map[string]any{"a": "b"}},
			want:   []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(testtoken.Sign(tt.claims))
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Groups)
		})
	}
}

func TestKeycloakGroupsPath(t *testing.T) {
	c, err := NewCodec(WithGroupsPath(KeycloakGroupsPath))
	require.NoError(t, err)
	raw := testtoken.Sign(jwt.MapClaims{
		"sub":                "u1",
		"preferred_username": "kc-user",
		"realm_access":       map[string]any{"roles": []string{"Approver", "offline_access"}},
	})
	got := c.Decode(raw)
	require.NotNil(t, got)
	assert.Equal(t, []string{"Approver", "offline_access"}, got.Groups)
	assert.Equal(t, "kc-user", got.Username)
	assert.Nil(t, got.Exp)
}

func TestNewCodecInvalidPath(t *testing.T) {
	_, err := NewCodec(WithGroupsPath("$['unterminated"))
	assert.Error(t, err)
}

func TestClaimsExpired(t *testing.T) {
	exp := time.Unix(1_000_000, 0)
	c := &Claims{Exp: &exp}
	skew := 60 * time.Second
	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "well before", now: exp.Add(-61 * time.Second), want: false},
		{name: "at buffer start", now: exp.Add(-60 * time.Second), want: true},
		{name: "inside buffer", now: exp.Add(-30 * time.Second), want: true},
		{name: "after exp", now: exp.Add(time.Hour), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Expired(tt.now, skew))
		})
	}
	assert.True(t, (&Claims{}).Expired(exp, skew), "missing exp")
	var nilClaims *Claims
	assert.True(t, nilClaims.Expired(exp, skew))
}
