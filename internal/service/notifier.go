package service

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
)

const (
	DefaultNotifyRetries = 5
	DefaultNotifyDelay   = 2 * time.Second
)

// Deliverer is the slice of the connection registry the notifier needs
type Deliverer interface {
	Deliver(vid, email string) int
}

type NotifierOpts struct {
	Retries int
	Delay   time.Duration
}

// Notifier bridges the gap between "verification committed server-side"
// and "the client's realtime connection finished establishing" by retrying
// delivery on a fixed interval. A vid with a retry loop already in flight
// is tracked in a TTL cache so replayed notifications coalesce into no-ops
// instead of double-firing the client
type Notifier struct {
	reg  Deliverer
	opts NotifierOpts

	mu       sync.Mutex
	inflight *ttlcache.Cache
}

func NewNotifier(reg Deliverer, opts NotifierOpts) *Notifier {
	if opts.Retries <= 0 {
		opts.Retries = DefaultNotifyRetries
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultNotifyDelay
	}

	cache := ttlcache.NewCache()
	cache.SkipTTLExtensionOnHit(true)

	// Backstop only. Entries are removed when the loop returns; the TTL
	// just guarantees a crashed loop can't wedge a vid forever
	cache.SetTTL(time.Duration(opts.Retries+1) * opts.Delay * 2)

	return &Notifier{
		reg:      reg,
		opts:     opts,
		inflight: cache,
	}
}

// NotifyVerified pushes the verification result for vid to whoever is
// waiting on it. Returns true on the first delivery that reaches at least
// one connection, false once all retries exhaust. A false return is a soft
// failure: the client finds out through the fallback poller instead
func (n *Notifier) NotifyVerified(ctx context.Context, vid, email string) bool {
	n.mu.Lock()
	if _, err := n.inflight.Get(vid); err == nil {
		n.mu.Unlock()

		zap.L().Debug("Delivery already in flight, skipping", zap.String("vid", vid))
		return false
	}
	n.inflight.Set(vid, struct{}{})
	n.mu.Unlock()

	defer n.inflight.Remove(vid)

	for attempt := 0; attempt <= n.opts.Retries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(n.opts.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return false
			case <-t.C:
			}
		}

		if delivered := n.reg.Deliver(vid, email); delivered > 0 {
			zap.L().Debug("Verification delivered",
				zap.String("vid", vid),
				zap.Int("connections", delivered),
				zap.Int("attempt", attempt+1))
			return true
		}
	}

	zap.L().Warn("No live connection after all delivery attempts", zap.String("vid", vid))
	return false
}
