package config

import (
	"time"

	"orders_sync/internal/retry"
)

// ResilienceConfig covers connection setup only. Sync cycles are never
// retried beyond the polling interval.
type ResilienceConfig struct {
	StoreConnect  retry.Config
	SheetsConnect retry.Config
}

var DefaultResilienceConfig = ResilienceConfig{
	StoreConnect: retry.Config{
		MaxRetries: 5,
		BaseDelay:  1 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
	SheetsConnect: retry.Config{
		MaxRetries: 3,
		BaseDelay:  2 * time.Second,
		MaxDelay:   30 * time.Second,
		Timeout:    15 * time.Second,
	},
}

// InfiniteResilienceConfig waits for dependencies indefinitely, for
// deployments where the database may come up after this process.
var InfiniteResilienceConfig = ResilienceConfig{
	StoreConnect: retry.Config{
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		Timeout:       15 * time.Second,
		InfiniteRetry: true,
	},
	SheetsConnect: retry.Config{
		BaseDelay:     2 * time.Second,
		MaxDelay:      60 * time.Second,
		Timeout:       15 * time.Second,
		InfiniteRetry: true,
	},
}

// ForMode returns the infinite preset when wait is true.
func ForMode(wait bool) ResilienceConfig {
	if wait {
		return InfiniteResilienceConfig
	}
	return DefaultResilienceConfig
}
