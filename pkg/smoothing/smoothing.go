package smoothing

import (
	"math"
	"time"
)

// Default animation windows.
const (
	GaugeDuration       = 800 * time.Millisecond
	ViewerCountDuration = 2000 * time.Millisecond
)

// EaseOutCubic maps a progress fraction in [0,1] onto 1-(1-p)^3.
func EaseOutCubic(p float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	inv := 1 - p
	return 1 - inv*inv*inv
}

// Interpolate blends start towards target by the eased fraction of elapsed over duration.
func Interpolate(start, target float64, elapsed, duration time.Duration) float64 {
	if duration <= 0 || elapsed >= duration {
		return target
	}
	if elapsed <= 0 {
		return start
	}
	p := float64(elapsed) / float64(duration)
	return start + (target-start)*EaseOutCubic(p)
}

// GaugeFill renders a ratio for a fill gauge. Past 1 only the remainder is
// shown so the gauge refills from empty after each threshold.
func GaugeFill(ratio float64) float64 {
	if ratio <= 0 {
		return 0
	}
	if ratio <= 1 {
		return ratio
	}
	return math.Mod(ratio, 1)
}

// Tween animates one displayed quantity.
type Tween struct {
	start     float64
	target    float64
	startedAt time.Time
	duration  time.Duration
}

func NewTween(initial float64, duration time.Duration) *Tween {
	return &Tween{start: initial, target: initial, duration: duration}
}

func (t *Tween) Value(now time.Time) float64 {
	return Interpolate(t.start, t.target, now.Sub(t.startedAt), t.duration)
}

func (t *Tween) Target() float64 {
	return t.target
}

// SetTarget restarts the animation from whatever is on screen at now, not
// from the previous target. It reports false when the target is unchanged.
func (t *Tween) SetTarget(now time.Time, target float64) bool {
	if target == t.target {
		return false
	}
	t.start = t.Value(now)
	t.target = target
	t.startedAt = now
	return true
}

func (t *Tween) Done(now time.Time) bool {
	return t.start == t.target || now.Sub(t.startedAt) >= t.duration
}
