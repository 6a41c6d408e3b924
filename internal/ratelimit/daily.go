// Package ratelimit enforces the per-user daily message quota.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultDailyLimit is the number of turns a user may consume per calendar day.
const DefaultDailyLimit = 100

// DayKey renders the calendar-day key used by the limiter.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

type dailyCount struct {
	day   string
	count int
}

// Daily is an in-process, per-user, per-day message counter. A user's entry
// for the previous day is dropped the first time a new day key is observed,
// which keeps memory bounded without a background sweep.
type Daily struct {
	mu     sync.Mutex
	limit  int
	counts map[string]*dailyCount
}

// NewDaily creates a limiter allowing limit messages per user per day.
// A non-positive limit falls back to DefaultDailyLimit.
func NewDaily(limit int) *Daily {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Daily{
		limit:  limit,
		counts: make(map[string]*dailyCount),
	}
}

// TryConsume atomically checks and increments the user's counter for dayKey.
// It returns false, without incrementing, once the limit is reached.
func (d *Daily) TryConsume(userID, dayKey string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.counts[userID]
	if entry == nil || entry.day != dayKey {
		entry = &dailyCount{day: dayKey}
		d.counts[userID] = entry
	}
	if entry.count >= d.limit {
		return false
	}
	entry.count++
	return true
}

// Remaining reports how many messages the user has left for dayKey.
func (d *Daily) Remaining(userID, dayKey string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	entry := d.counts[userID]
	if entry == nil || entry.day != dayKey {
		return d.limit
	}
	if entry.count >= d.limit {
		return 0
	}
	return d.limit - entry.count
}
