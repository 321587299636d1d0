// Package rate enforces the posts-per-hour and minimum-delay publish
// policy over a persisted sliding window of timestamps.
package rate

import (
	"time"

	"newsbot/internal/model"
)

// window is the trailing span the posts-per-hour bound applies to.
const window = time.Hour

// Limiter gates publishes. The zero value means unlimited.
type Limiter struct {
	postsPerHour int
	minDelay     time.Duration
}

// NewLimiter creates a Limiter. postsPerHour of 0 means unlimited;
// minDelay of 0 means no minimum gap between posts.
func NewLimiter(postsPerHour int, minDelay time.Duration) *Limiter {
	return &Limiter{postsPerHour: postsPerHour, minDelay: minDelay}
}

// CanPublishNow reports whether a publish at now would violate neither
// the minimum-delay nor the posts-per-hour bound.
func (l *Limiter) CanPublishNow(w model.RateWindow, now time.Time) bool {
	if l.minDelay > 0 {
		if last, ok := lastTimestamp(w); ok && now.Sub(last) < l.minDelay {
			return false
		}
	}
	if l.postsPerHour > 0 && countInWindow(w, now) >= l.postsPerHour {
		return false
	}
	return true
}

// NextEligibleTime returns the earliest instant at which both bounds
// would pass. If a publish is allowed at now, now is returned.
func (l *Limiter) NextEligibleTime(w model.RateWindow, now time.Time) time.Time {
	eligible := now

	if l.minDelay > 0 {
		if last, ok := lastTimestamp(w); ok {
			if t := last.Add(l.minDelay); t.After(eligible) {
				eligible = t
			}
		}
	}

	if l.postsPerHour > 0 {
		inWindow := timestampsInWindow(w, now)
		if len(inWindow) >= l.postsPerHour {
			// The slot frees up when the (count-limit+1)-th oldest
			// timestamp ages out of the trailing hour.
			idx := len(inWindow) - l.postsPerHour
			if t := inWindow[idx].Add(window); t.After(eligible) {
				eligible = t
			}
		}
	}

	return eligible
}

// Record appends a publish timestamp and prunes entries that can no
// longer affect either bound. Called immediately after each successful
// publish.
func (l *Limiter) Record(w *model.RateWindow, now time.Time) {
	w.Timestamps = append(w.Timestamps, now.UTC())

	cutoff := now.Add(-window)
	kept := w.Timestamps[:0]
	for _, t := range w.Timestamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	// Bound the window length even with posts-per-hour unset, so the
	// persisted document cannot grow without limit.
	if l.postsPerHour > 0 && len(kept) > l.postsPerHour {
		kept = kept[len(kept)-l.postsPerHour:]
	}
	w.Timestamps = append([]time.Time(nil), kept...)
}

func lastTimestamp(w model.RateWindow) (time.Time, bool) {
	if len(w.Timestamps) == 0 {
		return time.Time{}, false
	}
	last := w.Timestamps[0]
	for _, t := range w.Timestamps[1:] {
		if t.After(last) {
			last = t
		}
	}
	return last, true
}

func timestampsInWindow(w model.RateWindow, now time.Time) []time.Time {
	cutoff := now.Add(-window)
	var in []time.Time
	for _, t := range w.Timestamps {
		if t.After(cutoff) && !t.After(now) {
			in = append(in, t)
		}
	}
	return in
}

func countInWindow(w model.RateWindow, now time.Time) int {
	return len(timestampsInWindow(w, now))
}
