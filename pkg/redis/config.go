package redis

import "time"

// Config describes how to reach a Redis server. It is usually populated from
// the environment with config.Load.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"` // redis://:password@host:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}

// WithURL returns a copy of c pointing at url. Empty url keeps the current one.
func (c Config) WithURL(url string) Config {
	if url != "" {
		c.ConnectionURL = url
	}
	return c
}
