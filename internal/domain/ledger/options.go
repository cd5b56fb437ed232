package ledger

import (
	"time"

	"github.com/okian/eventwatch/pkg/logger"
)

// Option applies a configuration option to the Ledger.
type Option func(*Ledger)

// WithLogger sets the ledger logger.
func WithLogger(l logger.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.log = l
		}
	}
}

// WithClock overrides the time source used for Stats.
func WithClock(now func() time.Time) Option {
	return func(led *Ledger) {
		if now != nil {
			led.now = now
		}
	}
}
