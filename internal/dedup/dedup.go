package dedup

import (
	"sync"
	"time"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/logger"
	"sift/pkg/metrics"
	"sift/pkg/models"
)

// Deduplicator suppresses repeat submissions of the same event within a
// sliding window. State is process-local: a restart clears the window, and
// replicas behind a load balancer each keep their own. Suppression is
// best-effort burst protection, not an exactly-once guarantee.
type Deduplicator struct {
	hasher *Hasher
	window time.Duration
	logger logger.Logger

	mu   sync.Mutex
	seen map[string]time.Time

	stopSweep chan struct{}
	stopOnce  sync.Once

	// now is swappable in tests
	now func() time.Time
}

func New(cfg config.DedupConfig, log logger.Logger) *Deduplicator {
	window := cfg.Window
	if window <= 0 {
		window = constants.DedupWindow
	}

	d := &Deduplicator{
		hasher:    NewHasher(cfg.HashAlgorithm),
		window:    window,
		logger:    log,
		seen:      make(map[string]time.Time),
		stopSweep: make(chan struct{}),
		now:       time.Now,
	}

	go d.sweepLoop()

	return d
}

// ShouldSuppress reports whether an identical event was accepted within the
// window. A miss records the event's fingerprint, so the first caller wins
// and subsequent identical calls are suppressed until the window expires.
func (d *Deduplicator) ShouldSuppress(event models.InboundEvent) bool {
	fingerprint := d.hasher.Fingerprint(event)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if accepted, ok := d.seen[fingerprint]; ok && now.Sub(accepted) < d.window {
		metrics.DedupChecksTotal.WithLabelValues("suppressed").Inc()
		return true
	}

	d.seen[fingerprint] = now
	metrics.DedupChecksTotal.WithLabelValues("accepted").Inc()
	metrics.SetDedupWindowSize(len(d.seen))
	return false
}

// Forget drops the event's fingerprint so an identical resubmission is
// accepted again. Callers use it when a recorded event fails downstream
// before it reached the topic.
func (d *Deduplicator) Forget(event models.InboundEvent) {
	fingerprint := d.hasher.Fingerprint(event)

	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.seen, fingerprint)
	metrics.SetDedupWindowSize(len(d.seen))
}

// WindowSize returns the number of fingerprints currently tracked,
// including any that have expired but not yet been swept.
func (d *Deduplicator) WindowSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

func (d *Deduplicator) sweepLoop() {
	ticker := time.NewTicker(constants.DedupSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopSweep:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *Deduplicator) sweep() {
	now := d.now()

	d.mu.Lock()
	removed := 0
	for fingerprint, accepted := range d.seen {
		if now.Sub(accepted) >= d.window {
			delete(d.seen, fingerprint)
			removed++
		}
	}
	size := len(d.seen)
	d.mu.Unlock()

	metrics.SetDedupWindowSize(size)
	if removed > 0 {
		d.logger.Debugw("Swept expired fingerprints",
			"removed", removed,
			"remaining", size,
		)
	}
}

// Stop terminates the background sweeper. Safe to call more than once.
func (d *Deduplicator) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopSweep)
	})
}
