// Package env assembles the session core from the CLI configuration.
package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"

	"github.com/mpapenbr/docflow-session-go/log"
	"github.com/mpapenbr/docflow-session-go/pkg/config"
	"github.com/mpapenbr/docflow-session-go/pkg/guard"
	"github.com/mpapenbr/docflow-session-go/pkg/permission"
	"github.com/mpapenbr/docflow-session-go/pkg/redirect"
	"github.com/mpapenbr/docflow-session-go/pkg/session"
	"github.com/mpapenbr/docflow-session-go/pkg/storage"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/factory"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/impl/file"
	"github.com/mpapenbr/docflow-session-go/pkg/storage/impl/memory"
	natsStorage "github.com/mpapenbr/docflow-session-go/pkg/storage/impl/nats"
	redisStorage "github.com/mpapenbr/docflow-session-go/pkg/storage/impl/redis"
	"github.com/mpapenbr/docflow-session-go/pkg/token"
	"github.com/mpapenbr/docflow-session-go/pkg/tokenstore"
	"github.com/mpapenbr/docflow-session-go/pkg/utils"
)

const (
	durableNamespace = "durable"
	tabNamespace     = "tab"
	tabTTL           = 10 * time.Minute
)

// Env holds the wired components used by the commands
type Env struct {
	Config  config.AppConfig
	Durable storage.Storage
	Tab     storage.Storage
	Lock    *redirect.Guard
	Tokens  *tokenstore.Store
	State   *session.State
	Guard   *guard.Guard

	telemetry *config.Telemetry
	closers   []func()
}

// Setup configures logging and telemetry and creates the components.
// Close must be called when the command is done.
func Setup(ctx context.Context) (*Env, error) {
	if err := SetupLogger(); err != nil {
		return nil, err
	}
	ret := &Env{}
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if ret.telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	var err error
	if ret.Config, err = config.Resolve(); err != nil {
		ret.Close()
		return nil, err
	}
	log.Debug("Config:",
		log.String("cognitoDomain", ret.Config.CognitoDomain),
		log.String("issuer", ret.Config.IssuerURL),
		log.String("clientId", ret.Config.ClientID),
		log.String("redirectUri", ret.Config.RedirectURI),
		log.String("apiBaseUrl", ret.Config.APIBaseURL),
		log.String("storage", config.StorageType),
	)

	waitForRequiredServices(ctx)

	if err := ret.setupStorage(); err != nil {
		ret.Close()
		return nil, err
	}
	if err := ret.setupSession(); err != nil {
		ret.Close()
		return nil, err
	}
	return ret, nil
}

// Close releases storage connections and flushes telemetry
func (e *Env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	e.closers = nil
	if e.telemetry != nil {
		e.telemetry.Shutdown()
		e.telemetry = nil
	}
	_ = log.Sync()
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger replaces the default logger according to the log flags
func SetupLogger() error {
	opts := []log.Option{log.WithCaller(true), log.AddCallerSkip(1)}
	if config.LogFilter != "" {
		filter, err := log.FilterOption(config.LogFilter)
		if err != nil {
			return fmt.Errorf("invalid log filter: %w", err)
		}
		opts = append(opts, filter)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(os.Stderr, parseLogLevel(config.LogLevel, log.InfoLevel), opts...)
	default:
		logger = log.DevLogger(os.Stderr, parseLogLevel(config.LogLevel, log.WarnLevel), opts...)
	}
	log.ResetDefault(logger)
	return nil
}

func waitForRequiredServices(ctx context.Context) {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}
	var addr string
	switch factory.StorageType(config.StorageType) {
	case natsStorage.StorageTypeNats:
		addr = utils.ExtractFromNatsURL(config.NatsURL)
	case redisStorage.StorageTypeRedis:
		addr = utils.ExtractFromRedisAddr(config.RedisAddr)
	default:
		return
	}
	if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
		log.Fatal("required services not ready", log.ErrorField(err))
	}
}

//nolint:funlen // by design
func (e *Env) setupStorage() error {
	durableOpts := []storage.Option{storage.WithNamespace(durableNamespace)}
	tabOpts := []storage.Option{
		storage.WithNamespace(tabNamespace),
		storage.WithTTL(tabTTL),
	}
	var err error
	switch t := factory.StorageType(config.StorageType); t {
	case memory.StorageTypeMemory:
		if e.Durable, err = factory.New[storage.Storage, memory.Option](
			t, durableOpts, nil); err != nil {
			return err
		}
		e.Tab, err = factory.New[storage.Storage, memory.Option](t, tabOpts, nil)
	case file.StorageTypeFile:
		var specific []file.Option
		if config.StorageDir != "" {
			specific = append(specific, file.WithDir(config.StorageDir))
		}
		if e.Durable, err = factory.New[storage.Storage, file.Option](
			t, durableOpts, specific); err != nil {
			return err
		}
		// a CLI invocation is the browser tab equivalent
		e.Tab, err = factory.New[storage.Storage, memory.Option](
			memory.StorageTypeMemory, tabOpts, nil)
	case natsStorage.StorageTypeNats:
		nc, connErr := natsStorage.Connect(config.NatsURL, 5*time.Second)
		if connErr != nil {
			return fmt.Errorf("connect nats: %w", connErr)
		}
		e.closers = append(e.closers, nc.Close)
		specific := []natsStorage.Option{natsStorage.WithNATS(nc)}
		if e.Durable, err = factory.New[storage.Storage, natsStorage.Option](
			t, durableOpts, specific); err != nil {
			return err
		}
		e.Tab, err = factory.New[storage.Storage, natsStorage.Option](t, tabOpts, specific)
	case redisStorage.StorageTypeRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     utils.ExtractFromRedisAddr(config.RedisAddr),
			Password: config.RedisPassword,
		})
		e.closers = append(e.closers, func() { _ = rdb.Close() })
		specific := []redisStorage.Option{redisStorage.WithClient(rdb)}
		if e.Durable, err = factory.New[storage.Storage, redisStorage.Option](
			t, durableOpts, specific); err != nil {
			return err
		}
		e.Tab, err = factory.New[storage.Storage, redisStorage.Option](t, tabOpts, specific)
	default:
		return fmt.Errorf("%w: %s (registered: %v)",
			factory.ErrStorageTypeNotSupported, config.StorageType, factory.Registered())
	}
	return err
}

func (e *Env) setupSession() error {
	codec := token.DefaultCodec()
	if config.GroupsClaimPath != "" {
		var err error
		if codec, err = token.NewCodec(token.WithGroupsPath(config.GroupsClaimPath)); err != nil {
			return fmt.Errorf("invalid groups claim path: %w", err)
		}
	}
	e.Lock = redirect.New(e.Tab)
	e.Tokens = tokenstore.New(e.Durable, e.Lock,
		tokenstore.WithCodec(codec),
		tokenstore.WithClearListener(func(r tokenstore.ClearReason) {
			log.Debug("session cleared", log.String("reason", string(r)))
		}))
	e.State = session.New(e.Tokens)
	e.Guard = guard.New(e.State, e.Lock,
		guard.WithPermissionEvaluator(permission.NewPermissionEvaluator()))
	return nil
}
