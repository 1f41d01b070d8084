package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultCleanupInterval is how often idle per-user limiters are dropped.
const DefaultCleanupInterval = 10 * time.Minute

// UserLimiter keeps one token bucket per Telegram user.
type UserLimiter struct {
	limit    rate.Limit
	burst    int
	interval time.Duration

	mu          sync.Mutex
	users       map[int64]*rate.Limiter
	lastCleanup time.Time
	now         func() time.Time
}

// NewUserLimiter allows each user burst commands, refilled at limit per
// second. A zero limit disables limiting.
func NewUserLimiter(limit rate.Limit, burst int) *UserLimiter {
	if burst < 1 {
		burst = 1
	}
	return &UserLimiter{
		limit:       limit,
		burst:       burst,
		interval:    DefaultCleanupInterval,
		users:       make(map[int64]*rate.Limiter),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

// Allow reports whether userID may run a command now.
func (l *UserLimiter) Allow(userID int64) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeCleanup(now)

	limiter, ok := l.users[userID]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.users[userID] = limiter
	}
	return limiter.AllowN(now, 1)
}

// maybeCleanup drops limiters whose bucket has refilled completely; they
// would behave exactly like a fresh one. Callers hold l.mu.
func (l *UserLimiter) maybeCleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.interval {
		return
	}
	for id, limiter := range l.users {
		if limiter.TokensAt(now) >= float64(l.burst) {
			delete(l.users, id)
		}
	}
	l.lastCleanup = now
}
