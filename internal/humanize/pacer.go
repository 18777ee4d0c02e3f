package humanize

import (
	"errors"
	"time"

	"golang.org/x/time/rate"
)

// ErrThrottled is returned when an action would exceed the pacing ceiling.
var ErrThrottled = errors.New("action rate limit reached")

// Pacer caps the number of actions issued per minute.
type Pacer struct {
	limiter *rate.Limiter
	now     func() time.Time
}

// NewPacer creates a pacer. A non-positive rate disables pacing.
func NewPacer(perMinute float64, burst int) *Pacer {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(limit, burst), now: time.Now}
}

// Allow consumes one action token or returns ErrThrottled.
func (p *Pacer) Allow() error {
	if !p.limiter.AllowN(p.now(), 1) {
		return ErrThrottled
	}
	return nil
}
