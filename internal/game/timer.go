package game

import "time"

// RoundDuration is the length of every round.
const RoundDuration = 180 * time.Second

// TimerMode describes which field of a RoundTimer is populated.
type TimerMode string

const (
	TimerAbsent  TimerMode = "absent"
	TimerRunning TimerMode = "running"
	TimerPaused  TimerMode = "paused"
)

// RoundTimer counts a round down. At most one of ExpiresAt and Paused is set:
// running timers have an expiry instant, paused timers keep what was left.
type RoundTimer struct {
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	Paused    *time.Duration `json:"paused,omitempty"`
}

// Mode reports whether the timer is absent, running or paused.
func (t *RoundTimer) Mode() TimerMode {
	switch {
	case t.Paused != nil:
		return TimerPaused
	case t.ExpiresAt != nil:
		return TimerRunning
	}
	return TimerAbsent
}

// Start runs a fresh full-length countdown.
func (t *RoundTimer) Start(now time.Time) {
	expires := now.Add(RoundDuration)
	t.ExpiresAt = &expires
	t.Paused = nil
}

// Pause freezes a running timer. Pausing a paused or absent timer does nothing.
func (t *RoundTimer) Pause(now time.Time) {
	if t.Paused != nil || t.ExpiresAt == nil {
		return
	}
	left := max(t.ExpiresAt.Sub(now), 0)
	t.Paused = &left
	t.ExpiresAt = nil
}

// Resume restarts a paused timer with what it had left. A running timer is
// left alone and an absent one is started.
func (t *RoundTimer) Resume(now time.Time) {
	switch t.Mode() {
	case TimerRunning:
		return
	case TimerPaused:
		expires := now.Add(*t.Paused)
		t.ExpiresAt = &expires
		t.Paused = nil
	default:
		t.Start(now)
	}
}

// Left returns the exact time remaining; zero when absent.
func (t *RoundTimer) Left(now time.Time) time.Duration {
	switch t.Mode() {
	case TimerPaused:
		return *t.Paused
	case TimerRunning:
		return max(t.ExpiresAt.Sub(now), 0)
	}
	return 0
}

// Remaining returns whole seconds left, rounded down.
func (t *RoundTimer) Remaining(now time.Time) int {
	return int(t.Left(now) / time.Second)
}

// IsExpired reports whether time ran out. An absent timer is not expired.
func (t *RoundTimer) IsExpired(now time.Time) bool {
	switch t.Mode() {
	case TimerPaused:
		return *t.Paused <= 0
	case TimerRunning:
		return !now.Before(*t.ExpiresAt)
	}
	return false
}

// Clear removes the timer.
func (t *RoundTimer) Clear() {
	t.ExpiresAt = nil
	t.Paused = nil
}
