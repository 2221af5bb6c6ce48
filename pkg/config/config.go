package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	WaitForServices   string   // duration to wait for other services to be ready
	LogLevel          string   // sets the log level (zap log level values)
	LogFormat         string   // text vs json
	LogFilter         string   // zapfilter rules, e.g. "debug:tokenstore info:*"
	EnableTelemetry   bool     // enable telemetry
	TelemetryEndpoint string   // endpoint for telemetry
	TelemetryStdout   bool     // write telemetry data to stdout instead of OTLP
	StorageType       string   // storage backend for tokens (file, memory, nats, redis)
	StorageDir        string   // directory of the file storage
	NatsURL           string   // URL of the NATS server
	RedisAddr         string   // address of the redis server
	RedisPassword     string   // password for redis
	CognitoDomain     string   // identity provider domain
	IssuerURL         string   // OIDC issuer; if set, endpoints are discovered
	ClientID          string   // OAuth2 client id
	RedirectURI       string   // OAuth2 redirect uri
	LogoutURI         string   // post logout redirect uri
	Scopes            []string // requested scopes
	APIBaseURL        string   // base URL of the document API
	AppHost           string   // host used for derived URIs if not configured
	GroupsClaimPath   string   // JSONPath of the group list inside the id token
)
