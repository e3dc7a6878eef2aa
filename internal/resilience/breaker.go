package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrOpen is returned by Breaker.Allow while the breaker is open.
var ErrOpen = eris.New("resilience: circuit open")

// Breaker stops calls to a backend after Threshold consecutive failures.
// Once Cooldown has passed it lets one probe through; a successful probe
// closes it again, a failed one restarts the cooldown.
type Breaker struct {
	Threshold int
	Cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
}

// NewBreaker returns a closed Breaker.
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{Threshold: threshold, Cooldown: cooldown, now: time.Now}
}

// Allow returns ErrOpen if the call should not be attempted.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failures < b.Threshold {
		return nil
	}
	if b.probing || b.now().Sub(b.openedAt) < b.Cooldown {
		return ErrOpen
	}
	b.probing = true
	return nil
}

// Record reports the outcome of an allowed call.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wasProbe := b.probing
	b.probing = false
	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.Threshold || wasProbe {
		b.failures = max(b.failures, b.Threshold)
		b.openedAt = b.now()
	}
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.Threshold && (b.probing || b.now().Sub(b.openedAt) < b.Cooldown)
}
