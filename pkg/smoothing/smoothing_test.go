package smoothing

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

const tolerance = 1e-9

func Test_interpolation_converges_on_target_at_the_end_of_the_window(t *testing.T) {
	value := Interpolate(0, 100, 800*time.Millisecond, 800*time.Millisecond)
	if math.Abs(value-100) > tolerance {
		t.Errorf("expected 100, got %v", value)
	}

	halfway := Interpolate(0, 100, 400*time.Millisecond, 800*time.Millisecond)
	if math.Abs(halfway-87.5) > tolerance {
		t.Errorf("expected 87.5 at half time, got %v", halfway)
	}
}

func Test_interpolation_is_clamped_outside_the_window(t *testing.T) {
	if Interpolate(10, 20, -time.Second, time.Second) != 10 {
		t.Error("expected start value before the window")
	}
	if Interpolate(10, 20, 5*time.Second, time.Second) != 20 {
		t.Error("expected target value after the window")
	}
	if Interpolate(10, 20, 0, 0) != 20 {
		t.Error("expected zero duration to jump to target")
	}
}

func Test_ease_out_is_monotonic(t *testing.T) {
	previous := 0.0
	for i := 0; i <= 100; i++ {
		eased := EaseOutCubic(float64(i) / 100)
		if eased < previous {
			t.Errorf("ease out decreased at step %d", i)
		}
		previous = eased
	}
}

func Test_gauge_fill_shows_only_the_remainder_past_a_threshold(t *testing.T) {
	cases := map[float64]float64{
		-0.2: 0,
		0.4:  0.4,
		1:    1,
		1.25: 0.25,
		2:    0,
	}
	for ratio, expected := range cases {
		if math.Abs(GaugeFill(ratio)-expected) > tolerance {
			t.Errorf("GaugeFill(%v): expected %v, got %v", ratio, expected, GaugeFill(ratio))
		}
	}
}

func Test_retarget_starts_from_the_displayed_value(t *testing.T) {
	start := time.Unix(0, 0)
	tween := NewTween(0, 800*time.Millisecond)
	tween.SetTarget(start, 100)

	mid := start.Add(400 * time.Millisecond)
	shown := tween.Value(mid)
	tween.SetTarget(mid, 200)

	if math.Abs(tween.Value(mid)-shown) > tolerance {
		t.Errorf("expected no jump on retarget, shown %v then %v", shown, tween.Value(mid))
	}
	if tween.Done(mid.Add(799 * time.Millisecond)) {
		t.Error("expected retarget to restart the window")
	}
	if tween.Value(mid.Add(800*time.Millisecond)) != 200 {
		t.Error("expected the new target at the end of the restarted window")
	}
	if tween.SetTarget(mid, 200) {
		t.Error("expected unchanged target to be a no-op")
	}
}

func Test_animator_stops_stepping_once_settled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClock()
	frames := make(chan float64, 64)
	animator := NewAnimator(ctx, &AnimatorParams{
		Duration: 800 * time.Millisecond,
		Frame:    100 * time.Millisecond,
		Clock:    clock,
	}, func(v float64) { frames <- v })

	animator.SetTarget(100)
	if !animator.Running() {
		t.Error("expected animator to be running after a new target")
		t.FailNow()
	}

	last := 0.0
	for step := 0; step < 20 && last != 100; step++ {
		if err := clock.BlockUntilContext(ctx, 1); err != nil {
			t.Error(err)
			t.FailNow()
		}
		clock.Advance(100 * time.Millisecond)
		select {
		case v := <-frames:
			if v < last {
				t.Errorf("frame went backwards from %v to %v", last, v)
			}
			last = v
		case <-ctx.Done():
			t.Error("timed out waiting for a frame")
			t.FailNow()
		}
	}

	if last != 100 {
		t.Errorf("expected to settle on 100, got %v", last)
	}
	if animator.Running() {
		t.Error("expected the loop to stop once settled")
	}
}
