package queue

import "time"

// Config holds the environment-driven worker settings
type Config struct {
	ConfigFile    string        `env:"QUEUE_CONFIG_FILE" envDefault:"queues.yaml"`
	DefaultConfig string        `env:"QUEUE_DEFAULT_CONFIG" envDefault:"default"`
	Workers       int           `env:"QUEUE_WORKERS" envDefault:"1"`
	MaxJobs       int           `env:"QUEUE_MAX_JOBS" envDefault:"0"`
	MaxRuntime    time.Duration `env:"QUEUE_MAX_RUNTIME" envDefault:"0s"`
	RestInterval  time.Duration `env:"QUEUE_REST_INTERVAL" envDefault:"10ms"`
	SleepInterval time.Duration `env:"QUEUE_SLEEP_INTERVAL" envDefault:"1s"`
}

// WorkerOptions converts the settings into worker options
func (c Config) WorkerOptions() []WorkerOption {
	return []WorkerOption{
		WithMaxJobs(c.MaxJobs),
		WithMaxRuntime(c.MaxRuntime),
		WithRestInterval(c.RestInterval),
		WithSleepInterval(c.SleepInterval),
	}
}

// QueueConfig is one named entry of the queue registry
type QueueConfig struct {
	// Handler selects the driver, e.g. "redis", "postgres" or "memory".
	Handler string `yaml:"handler" json:"handler"`
	// URL holds the store connection string.
	URL string `yaml:"url" json:"url,omitempty"`
	// Prefix namespaces the queue data inside the store.
	Prefix string `yaml:"prefix" json:"prefix,omitempty"`
	// Options carries driver specific settings.
	Options map[string]string `yaml:"options" json:"options,omitempty"`
	// Listeners names listeners registered on the Manager.
	Listeners []string `yaml:"listeners" json:"listeners,omitempty"`
}
