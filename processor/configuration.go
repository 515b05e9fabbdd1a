// SPDX-License-Identifier: GPL-3.0-or-later
package processor

import (
	"fmt"
	"time"
)

const (
	DefaultConcurrency = 4
	DefaultFetchLimit  = 50

	defaultRetryAttempts  = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
)

type ConfigFunc func(c *configuration) error

func DryRun() ConfigFunc {
	return func(c *configuration) error {
		c.DryRun = true

		return nil
	}
}

func Concurrency(workers int) ConfigFunc {
	return func(c *configuration) error {
		if workers < 1 {
			return fmt.Errorf("concurrency must be at least 1")
		}

		c.Concurrency = workers
		return nil
	}
}

func FetchLimit(limit int) ConfigFunc {
	return func(c *configuration) error {
		if limit < 1 {
			return fmt.Errorf("fetch limit must be at least 1")
		}

		c.FetchLimit = limit
		return nil
	}
}

func Retry(attempts int, baseDelay time.Duration) ConfigFunc {
	return func(c *configuration) error {
		if attempts < 1 {
			return fmt.Errorf("retry attempts must be at least 1")
		}

		c.RetryAttempts = attempts
		c.RetryBaseDelay = baseDelay
		return nil
	}
}

type configuration struct {
	DryRun bool

	Concurrency int
	FetchLimit  int

	RetryAttempts  int
	RetryBaseDelay time.Duration
}
