// Package webui provides the browser front end for the image generator.
// This file contains the rate limiter molecule for protecting the login form
// against brute force attacks.
package webui

import (
	"context"
	"sync"
	"time"
)

// attemptRecord tracks failed attempts for one IP within a window.
type attemptRecord struct {
	Count   int
	ResetAt time.Time
}

func (a attemptRecord) expired(now time.Time) bool {
	return !now.Before(a.ResetAt)
}

// RateLimiter tracks failed authentication attempts per IP address.
//
// The limiter uses a fixed window approach where:
//   - Each failed attempt increments the counter
//   - After maxAttempts, the IP is blocked for the block duration
//   - Successful login resets the counter
//   - Old entries are periodically cleaned up
//
// Thread safety is provided via sync.RWMutex for concurrent access.
type RateLimiter struct {
	mu          sync.RWMutex
	attempts    map[string]attemptRecord
	maxAttempts int
	window      time.Duration
	block       time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a new RateLimiter with the specified limits.
//
// Parameters:
//   - maxAttempts: Number of failed attempts before blocking (e.g., 5)
//   - windowMinutes: Time window for counting attempts in minutes (e.g., 1)
//   - blockMinutes: How long to block after max attempts in minutes (e.g., 5)
func NewRateLimiter(maxAttempts, windowMinutes, blockMinutes int) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string]attemptRecord),
		maxAttempts: maxAttempts,
		window:      time.Duration(windowMinutes) * time.Minute,
		block:       time.Duration(blockMinutes) * time.Minute,
		now:         time.Now,
	}
}

// Allow reports whether ip may attempt authentication. When blocked it
// also returns the time left until the block lifts.
func (r *RateLimiter) Allow(ip string) (bool, time.Duration) {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	now := r.now()
	if !exists || record.expired(now) {
		return true, 0
	}
	if record.Count >= r.maxAttempts {
		return false, record.ResetAt.Sub(now)
	}
	return true, 0
}

// RecordAttempt records a failed authentication attempt for ip. Reaching
// maxAttempts extends the window to the block duration.
func (r *RateLimiter) RecordAttempt(ip string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	record, exists := r.attempts[ip]
	if !exists || record.expired(now) {
		record = attemptRecord{ResetAt: now.Add(r.window)}
	}

	record.Count++
	if record.Count == r.maxAttempts {
		record.ResetAt = now.Add(r.block)
	}
	r.attempts[ip] = record
}

// Reset clears the attempt record for an IP address.
func (r *RateLimiter) Reset(ip string) {
	r.mu.Lock()
	delete(r.attempts, ip)
	r.mu.Unlock()
}

// Cleanup removes expired attempt records and returns how many were removed.
func (r *RateLimiter) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for ip, record := range r.attempts {
		if record.expired(now) {
			delete(r.attempts, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupTicker calls Cleanup every interval until ctx is cancelled.
func (r *RateLimiter) StartCleanupTicker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.Cleanup()
			}
		}
	}()
}

// Count returns the current number of tracked IP addresses.
func (r *RateLimiter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attempts)
}

// GetAttemptCount returns the current attempt count for ip, or 0 if none
// are recorded in the active window.
func (r *RateLimiter) GetAttemptCount(ip string) int {
	r.mu.RLock()
	record, exists := r.attempts[ip]
	r.mu.RUnlock()

	if !exists || record.expired(r.now()) {
		return 0
	}
	return record.Count
}
