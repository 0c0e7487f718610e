package recorder

import "time"

// Defaults for Config.
const (
	DefaultQueueSize      = 10000
	DefaultWorkers        = 4
	DefaultFlushInterval  = time.Second
	DefaultFlushThreshold = 100
	DefaultFlushTimeout   = 5 * time.Second
)

// Config tunes the write queue and the writer pool.
type Config struct {
	QueueSize      int           `env:"ANALYTICS_RECORDER_QUEUE_SIZE"      yaml:"queue_size"`
	Workers        int           `env:"ANALYTICS_RECORDER_WORKERS"         yaml:"workers"`
	FlushInterval  time.Duration `env:"ANALYTICS_RECORDER_FLUSH_INTERVAL"  yaml:"flush_interval"`
	FlushThreshold int           `env:"ANALYTICS_RECORDER_FLUSH_THRESHOLD" yaml:"flush_threshold"`
	FlushTimeout   time.Duration `env:"ANALYTICS_RECORDER_FLUSH_TIMEOUT"   yaml:"flush_timeout"`
	SkipBots       bool          `env:"ANALYTICS_RECORDER_SKIP_BOTS"       yaml:"skip_bots"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.FlushThreshold <= 0 {
		c.FlushThreshold = DefaultFlushThreshold
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = DefaultFlushTimeout
	}
}
