package storage

import "time"

type (
	Config struct {
		Namespace string        // separates durable and tab scoped data
		TTL       time.Duration // default entry lifetime, 0 means no expiry
	}
	Option func(*Config)
)

func NewConfig(opts ...Option) *Config {
	cfg := &Config{Namespace: "default"}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

func WithNamespace(ns string) Option {
	return func(c *Config) {
		c.Namespace = ns
	}
}

func WithTTL(d time.Duration) Option {
	return func(c *Config) {
		c.TTL = d
	}
}
