package auth

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedEmails bounds the limiter map between cleanups.
const maxTrackedEmails = 10000

// EmailLimiter rate-limits login-link requests per email address.
//
// Without it, anyone could make the server mail an address over and over.
// Each address gets its own token bucket: `burst` requests right away, then
// one more every `every`.
type EmailLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
	logger   *slog.Logger
}

// NewEmailLimiter creates a limiter allowing burst requests at once and one
// request per every after that. every <= 0 disables limiting.
func NewEmailLimiter(every time.Duration, burst int, logger *slog.Logger) *EmailLimiter {
	r := rate.Inf
	if every > 0 {
		r = rate.Every(every)
	}
	if burst < 1 {
		burst = 1
	}
	return &EmailLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        burst,
		logger:   logger,
	}
}

// Allow reports whether a login link may be sent to email now, spending one
// token if so. Addresses differing only in case share a bucket.
func (l *EmailLimiter) Allow(email string) bool {
	return l.limiter(strings.ToLower(email)).Allow()
}

func (l *EmailLimiter) limiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
		l.limiters[key] = lim
	}
	return lim
}

// StartCleanup periodically resets the map once it grows past
// maxTrackedEmails. It stops when done is closed.
func (l *EmailLimiter) StartCleanup(interval time.Duration, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.cleanup()
			}
		}
	}()
}

func (l *EmailLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.limiters) > maxTrackedEmails {
		l.logger.Info("resetting login-link limiter", slog.Int("count", len(l.limiters)))
		l.limiters = make(map[string]*rate.Limiter)
	}
}
