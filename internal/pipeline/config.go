package pipeline

import "time"

// Config holds deadlines and the cloud retry policy
type Config struct {
	// LocalTimeout bounds the local extraction call. It is never retried.
	LocalTimeout time.Duration
	// CloudTimeout bounds each cloud attempt
	CloudTimeout time.Duration
	// CloudMaxRetries is the number of retries after the first cloud attempt,
	// for transport errors only
	CloudMaxRetries int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	// DefaultCurrency is used when the local extractor found no currency
	DefaultCurrency string
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		LocalTimeout:    20 * time.Second,
		CloudTimeout:    60 * time.Second,
		CloudMaxRetries: 2,
		InitialBackoff:  500 * time.Millisecond,
		MaxBackoff:      5 * time.Second,
		DefaultCurrency: "USD",
	}
}
