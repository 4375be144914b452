package broker

import (
	"context"
	"log"
	"time"

	"github.com/zkintents/taralli/pkg/metrics"
)

// sweepInterval is the expiration sweeper's period (spec.md §4.F: "e.g. every 60s").
const sweepInterval = 60 * time.Second

// Sweeper periodically marks expired offer rows, never deleting them.
type Sweeper struct {
	store   *Store
	metrics *metrics.Registry
	logger  *log.Logger
}

// NewSweeper constructs a Sweeper over store. metrics may be nil.
func NewSweeper(store *Store, metrics *metrics.Registry, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.New(log.Writer(), "[Sweeper] ", log.LstdFlags)
	}
	return &Sweeper{store: store, metrics: metrics, logger: logger}
}

// Run blocks, sweeping every sweepInterval until ctx is cancelled.
func (sw *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sw.logger.Println("sweeper shutting down")
			return
		case <-ticker.C:
			start := time.Now()
			n, err := sw.store.SweepExpired(ctx)
			if sw.metrics != nil {
				sw.metrics.SweepDuration.Observe(time.Since(start).Seconds())
			}
			if err != nil {
				sw.logger.Printf("sweep failed: %v", err)
				continue
			}
			if n > 0 {
				sw.logger.Printf("expired %d offer(s)", n)
				if sw.metrics != nil {
					sw.metrics.OffersExpired.Add(float64(n))
				}
			}
		}
	}
}
