package client

import "time"

// Default reconnection parameters.
const (
	defaultMaxAttempts = 10
	defaultBackoff     = 1 * time.Second
	defaultMaxBackoff  = 30 * time.Second
)

// BackoffPolicy computes reconnection delays: the base duration doubles with
// each attempt up to the cap. Zero fields take defaults.
type BackoffPolicy struct {
	// Base is the delay before the first retry. Defaults to 1s.
	Base time.Duration

	// Max caps the computed delay. Defaults to 30s.
	Max time.Duration

	// MaxAttempts is the number of retries before giving up. Defaults to 10.
	MaxAttempts int
}

func (p BackoffPolicy) withDefaults() BackoffPolicy {
	if p.Base <= 0 {
		p.Base = defaultBackoff
	}
	if p.Max <= 0 {
		p.Max = defaultMaxBackoff
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	return p
}

// Delay returns the wait before the given attempt, counting from 1.
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	delay := p.Base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}
