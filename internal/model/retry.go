package model

import "time"

// RetryConfig defines the per-row retry behaviour for provider calls.
type RetryConfig struct {
	MaxRetries     int           `json:"max_retries"`
	InitialBackoff time.Duration `json:"initial_backoff"`
	MaxBackoff     time.Duration `json:"max_backoff"`
	Multiplier     float64       `json:"multiplier"`
}

// DefaultRetryConfig mirrors the dashboard defaults: three retries, 2s doubling.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     3,
	InitialBackoff: 2 * time.Second,
	MaxBackoff:     30 * time.Second,
	Multiplier:     2.0,
}
