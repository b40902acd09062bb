package kafka

import "time"

// ProducerConfig holds writer settings
type ProducerConfig struct {
	Brokers      []string
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	WriteTimeout time.Duration
	BatchSize    int
	BatchTimeout time.Duration
	Async        bool
}

// ProducerOption mutates ProducerConfig
type ProducerOption func(*ProducerConfig)

// WithBrokers sets the bootstrap brokers
func WithBrokers(brokers ...string) ProducerOption {
	return func(c *ProducerConfig) { c.Brokers = brokers }
}

// WithCompression sets the codec (gzip, snappy, lz4, zstd)
func WithCompression(codec string) ProducerOption {
	return func(c *ProducerConfig) { c.Compression = codec }
}

// WithAsync makes writes fire-and-forget
func WithAsync(async bool) ProducerOption {
	return func(c *ProducerConfig) { c.Async = async }
}

// WithBatchTimeout caps how long a partial batch waits
func WithBatchTimeout(d time.Duration) ProducerOption {
	return func(c *ProducerConfig) { c.BatchTimeout = d }
}
