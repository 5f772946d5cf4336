package llm

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Quota sets sliding-window ceilings on model calls. Zero means unlimited for
// that window.
type Quota struct {
	PerMinute int
	PerHour   int
	PerDay    int
}

// Remaining holds how many calls are left in each window.
type Remaining struct {
	Minute int
	Hour   int
	Day    int
}

// RateLimiter is a process-wide sliding-window call counter. Reserve is
// consulted before each network call and the attempt is counted atomically
// with the check, so concurrent extractions cannot overshoot the ceiling.
type RateLimiter struct {
	mu     sync.Mutex
	quota  Quota
	stamps []time.Time
	now    func() time.Time
}

// NewRateLimiter creates a limiter with the given quota.
func NewRateLimiter(q Quota) *RateLimiter {
	return &RateLimiter{quota: q, now: time.Now}
}

// Reserve records one call attempt, or fails fast with a classified,
// non-retryable error carrying the remaining-quota figures. No network is
// touched on refusal.
func (l *RateLimiter) Reserve() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)

	rem := l.remainingLocked(now)
	if (l.quota.PerMinute > 0 && rem.Minute <= 0) ||
		(l.quota.PerHour > 0 && rem.Hour <= 0) ||
		(l.quota.PerDay > 0 && rem.Day <= 0) {
		return &Error{
			Code:      CodeRateLimited,
			Message:   "local rate limit reached (remaining: " + formatRemaining(rem) + ")",
			Transient: false,
		}
	}

	l.stamps = append(l.stamps, now)
	return nil
}

// Remaining reports the calls left in each window without reserving.
// Windows without a ceiling report -1.
func (l *RateLimiter) Remaining() Remaining {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	return l.remainingLocked(now)
}

func (l *RateLimiter) remainingLocked(now time.Time) Remaining {
	rem := Remaining{Minute: -1, Hour: -1, Day: -1}
	if l.quota.PerMinute > 0 {
		rem.Minute = l.quota.PerMinute - l.countSince(now.Add(-time.Minute))
	}
	if l.quota.PerHour > 0 {
		rem.Hour = l.quota.PerHour - l.countSince(now.Add(-time.Hour))
	}
	if l.quota.PerDay > 0 {
		rem.Day = l.quota.PerDay - l.countSince(now.Add(-24*time.Hour))
	}
	return rem
}

func (l *RateLimiter) countSince(cutoff time.Time) int {
	n := 0
	for _, t := range l.stamps {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// prune drops stamps older than the widest window.
func (l *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	keep := l.stamps[:0]
	for _, t := range l.stamps {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.stamps = keep
}

// formatRemaining renders only the windows that actually carry a ceiling.
func formatRemaining(rem Remaining) string {
	parts := make([]string, 0, 3)
	if rem.Minute >= 0 {
		parts = append(parts, fmt.Sprintf("%d/min", max0(rem.Minute)))
	}
	if rem.Hour >= 0 {
		parts = append(parts, fmt.Sprintf("%d/hr", max0(rem.Hour)))
	}
	if rem.Day >= 0 {
		parts = append(parts, fmt.Sprintf("%d/day", max0(rem.Day)))
	}
	return strings.Join(parts, " ")
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
