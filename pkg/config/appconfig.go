package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

const (
	CallbackPath = "/auth/callback"
	APIPath      = "/api"
)

var DefaultScopes = []string{"openid", "email", "profile"}

// AppConfig holds the identity provider and API settings used by the
// session core.
type AppConfig struct {
	CognitoDomain string
	IssuerURL     string
	ClientID      string
	RedirectURI   string
	LogoutURI     string
	Scopes        []string
	APIBaseURL    string
}

// Resolve builds the AppConfig from the CLI values. Missing URIs are
// derived from AppHost.
func Resolve() (AppConfig, error) {
	return ResolveWith(AppConfig{
		CognitoDomain: CognitoDomain,
		IssuerURL:     IssuerURL,
		ClientID:      ClientID,
		RedirectURI:   RedirectURI,
		LogoutURI:     LogoutURI,
		Scopes:        Scopes,
		APIBaseURL:    APIBaseURL,
	}, AppHost)
}

// ResolveWith fills the empty values of cfg using host as fallback origin.
// host may carry a port, e.g. "localhost:3000".
func ResolveWith(cfg AppConfig, host string) (AppConfig, error) {
	cfg.CognitoDomain = strings.TrimSuffix(
		strings.TrimPrefix(cfg.CognitoDomain, "https://"), "/")
	cfg.Scopes = lo.Uniq(lo.Filter(lo.Map(cfg.Scopes, func(s string, _ int) string {
		return strings.TrimSpace(s)
	}), func(s string, _ int) bool { return s != "" }))
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = append([]string(nil), DefaultScopes...)
	}
	if cfg.RedirectURI == "" || cfg.LogoutURI == "" || cfg.APIBaseURL == "" {
		if host == "" {
			return cfg, fmt.Errorf("app host required to derive missing URIs")
		}
		origin := Origin(host)
		cfg.RedirectURI = lo.CoalesceOrEmpty(cfg.RedirectURI, origin+CallbackPath)
		cfg.LogoutURI = lo.CoalesceOrEmpty(cfg.LogoutURI, origin+"/")
		cfg.APIBaseURL = lo.CoalesceOrEmpty(cfg.APIBaseURL, origin+APIPath)
	}
	if cfg.ClientID == "" {
		return cfg, fmt.Errorf("client id required")
	}
	if cfg.CognitoDomain == "" && cfg.IssuerURL == "" {
		return cfg, fmt.Errorf("either cognito domain or issuer url required")
	}
	if _, err := url.Parse(cfg.RedirectURI); err != nil {
		return cfg, fmt.Errorf("invalid redirect uri: %w", err)
	}
	return cfg, nil
}

// Origin returns http for local hosts and https otherwise
func Origin(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return strings.TrimSuffix(host, "/")
	}
	name := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = h
	}
	if isLocal(name) {
		return "http://" + host
	}
	return "https://" + host
}

func isLocal(name string) bool {
	if name == "localhost" || strings.HasSuffix(name, ".localhost") {
		return true
	}
	ip := net.ParseIP(name)
	return ip != nil && ip.IsLoopback()
}
