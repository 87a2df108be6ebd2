// internal/workers/payout/settle-payout/config.go
package settlepayout

import "time"

type Config struct {
	// Settlement spans external transfers, so this runs longer than the
	// other worker timeouts.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 120 * time.Second,
	}
}
