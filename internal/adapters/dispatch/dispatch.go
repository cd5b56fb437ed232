// Package dispatch fans a payload out to every endpoint of a category.
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/eventwatch/internal/adapters/webhook"
	"github.com/okian/eventwatch/internal/domain/format"
	"github.com/okian/eventwatch/pkg/logger"
	"github.com/okian/eventwatch/pkg/metrics"
)

const defaultSendTimeout = 10 * time.Second

// Result is the outcome of one delivery.
type Result struct {
	Endpoint string
	Latency  time.Duration
	Err      error
}

// Dispatcher delivers payloads concurrently through a Sender.
type Dispatcher struct {
	sender      webhook.Sender
	name        string
	sendTimeout time.Duration
	logger      logger.Logger
}

// New creates a Dispatcher.
func New(sender webhook.Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		name:        "dispatch",
		sendTimeout: defaultSendTimeout,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers p to every endpoint in parallel and waits for all of them.
// Results are returned in endpoint order. A failure is logged and counted
// but does not affect the other endpoints; nothing is retried.
func (d *Dispatcher) Send(ctx context.Context, category string, endpoints []string, p format.Payload) []Result {
	results := make([]Result, len(endpoints))
	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		i, endpoint := i, endpoint
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = d.deliver(ctx, category, endpoint, p)
		}()
	}
	wg.Wait()
	return results
}

func (d *Dispatcher) deliver(ctx context.Context, category, endpoint string, p format.Payload) (res Result) {
	res.Endpoint = endpoint
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("sender panicked: %v", r)
		}
		res.Latency = time.Since(start)
		metrics.RecordDispatch(category, res.Latency, res.Err)
		if res.Err != nil {
			d.logger.Error(ctx, "webhook delivery failed",
				logger.String("dispatcher", d.name),
				logger.String("category", category),
				logger.String("endpoint", webhook.Redact(endpoint)),
				logger.Duration("latency", res.Latency),
				logger.Error(res.Err))
		}
	}()

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	res.Err = d.sender.Send(sendCtx, endpoint, p)
	return res
}

// Failed counts the failed results.
func Failed(results []Result) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
