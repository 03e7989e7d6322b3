package worker

import (
	"fmt"
	"time"
)

// Config tunes the job pollers. Zero fields take the DefaultConfig value.
type Config struct {
	Concurrency  int
	PollInterval time.Duration

	// JobTimeout bounds a single handler call.
	JobTimeout time.Duration

	// ShutdownTimeout is how long Run waits for claimed jobs after cancel.
	ShutdownTimeout time.Duration

	// StaleJobThreshold is the age after which a 'running' job is assumed
	// orphaned by a crashed process and requeued on startup.
	StaleJobThreshold time.Duration
}

func DefaultConfig() Config {
	return Config{
		Concurrency:       2,
		PollInterval:      5 * time.Second,
		JobTimeout:        5 * time.Minute,
		ShutdownTimeout:   30 * time.Second,
		StaleJobThreshold: 10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.PollInterval == 0 {
		c.PollInterval = d.PollInterval
	}
	if c.JobTimeout == 0 {
		c.JobTimeout = d.JobTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.StaleJobThreshold == 0 {
		c.StaleJobThreshold = d.StaleJobThreshold
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.Concurrency < 1 || c.Concurrency > 100:
		return fmt.Errorf("concurrency must be between 1 and 100, got %d", c.Concurrency)
	case c.PollInterval < time.Second:
		return fmt.Errorf("poll interval must be at least 1s, got %v", c.PollInterval)
	case c.JobTimeout < time.Second:
		return fmt.Errorf("job timeout must be at least 1s, got %v", c.JobTimeout)
	case c.ShutdownTimeout < time.Second:
		return fmt.Errorf("shutdown timeout must be at least 1s, got %v", c.ShutdownTimeout)
	case c.StaleJobThreshold < c.JobTimeout:
		return fmt.Errorf("stale job threshold %v is shorter than job timeout %v", c.StaleJobThreshold, c.JobTimeout)
	}
	return nil
}
