package accounts

import (
	"sync"
	"time"
)

type loginAttempt struct {
	count     int
	lockUntil time.Time
}

// LoginThrottle counts consecutive failed logins per client IP. State lives
// only in memory and is reset on restart.
type LoginThrottle struct {
	mu       sync.Mutex
	attempts map[string]*loginAttempt
	max      int
	lockout  time.Duration
	now      func() time.Time
}

func NewLoginThrottle(maxAttempts int, lockout time.Duration) *LoginThrottle {
	return &LoginThrottle{
		attempts: make(map[string]*loginAttempt),
		max:      maxAttempts,
		lockout:  lockout,
		now:      time.Now,
	}
}

// Locked returns the remaining lockout for ip, or zero.
func (t *LoginThrottle) Locked(ip string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[ip]
	if !ok || a.lockUntil.IsZero() {
		return 0
	}
	remaining := a.lockUntil.Sub(t.now())
	if remaining <= 0 {
		a.lockUntil = time.Time{}
		return 0
	}
	return remaining
}

// Fail records a failed attempt and reports whether it triggered a lockout.
// Reaching the limit locks the IP and starts a fresh count.
func (t *LoginThrottle) Fail(ip string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[ip]
	if !ok {
		a = &loginAttempt{}
		t.attempts[ip] = a
	}
	a.count++
	if a.count >= t.max {
		a.count = 0
		a.lockUntil = t.now().Add(t.lockout)
		return true
	}
	return false
}

// Succeed clears all state for ip.
func (t *LoginThrottle) Succeed(ip string) {
	t.mu.Lock()
	delete(t.attempts, ip)
	t.mu.Unlock()
}

// Failures returns the current consecutive failure count for ip.
func (t *LoginThrottle) Failures(ip string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.attempts[ip]; ok {
		return a.count
	}
	return 0
}
