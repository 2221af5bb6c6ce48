package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWith(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AppConfig
		host    string
		want    AppConfig
		wantErr bool
	}{
		{
			name: "local host fallbacks",
			cfg:  AppConfig{CognitoDomain: "https://auth.example.com/", ClientID: "c1"},
			host: "localhost:3000",
			want: AppConfig{
				CognitoDomain: "auth.example.com",
				ClientID:      "c1",
				RedirectURI:   "http://localhost:3000/auth/callback",
				LogoutURI:     "http://localhost:3000/",
				Scopes:        []string{"openid", "email", "profile"},
				APIBaseURL:    "http://localhost:3000/api",
			},
		},
		{
			name: "public host fallbacks",
			cfg: AppConfig{
				CognitoDomain: "auth.example.com",
				ClientID:      "c1",
				Scopes:        []string{"openid", " email ", "openid", ""},
				APIBaseURL:    "https://api.example.com/v1",
			},
			host: "docs.example.com",
			want: AppConfig{
				CognitoDomain: "auth.example.com",
				ClientID:      "c1",
				RedirectURI:   "https://docs.example.com/auth/callback",
				LogoutURI:     "https://docs.example.com/",
				Scopes:        []string{"openid", "email"},
				APIBaseURL:    "https://api.example.com/v1",
			},
		},
		{
			name: "everything configured",
			cfg: AppConfig{
				IssuerURL:   "https://idp.example.com/realms/docs",
				ClientID:    "c1",
				RedirectURI: "https://x/cb",
				LogoutURI:   "https://x/",
				APIBaseURL:  "https://x/api",
			},
			want: AppConfig{
				IssuerURL:   "https://idp.example.com/realms/docs",
				ClientID:    "c1",
				RedirectURI: "https://x/cb",
				LogoutURI:   "https://x/",
				Scopes:      []string{"openid", "email", "profile"},
				APIBaseURL:  "https://x/api",
			},
		},
		{
			name:    "missing host",
			cfg:     AppConfig{CognitoDomain: "auth.example.com", ClientID: "c1"},
			wantErr: true,
		},
		{
			name:    "missing client id",
			cfg:     AppConfig{CognitoDomain: "auth.example.com"},
			host:    "localhost",
			wantErr: true,
		},
		{
			name:    "missing identity provider",
			cfg:     AppConfig{ClientID: "c1"},
			host:    "localhost",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveWith(tt.cfg, tt.host)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ResolveWith() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{host: "localhost", want: "http://localhost"},
		{host: "localhost:8080", want: "http://localhost:8080"},
		{host: "127.0.0.1:5173", want: "http://127.0.0.1:5173"},
		{host: "app.localhost", want: "http://app.localhost"},
		{host: "docs.example.com", want: "https://docs.example.com"},
		{host: "https://docs.example.com/", want: "https://docs.example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, Origin(tt.host))
		})
	}
}
