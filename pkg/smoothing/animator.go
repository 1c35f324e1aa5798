package smoothing

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type AnimatorParams struct {
	Duration time.Duration
	// Frame is the interval between steps.
	Frame   time.Duration
	Initial float64
	Clock   clockwork.Clock
}

// Animator steps a Tween on a ticker and hands every frame to onFrame. The
// loop stops once the tween settles and starts again on the next target.
type Animator struct {
	ctx     context.Context
	clock   clockwork.Clock
	frame   time.Duration
	onFrame func(float64)

	mu      sync.Mutex
	tween   *Tween
	running bool
}

func NewAnimator(ctx context.Context, params *AnimatorParams, onFrame func(float64)) *Animator {
	clock := params.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	frame := params.Frame
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	return &Animator{
		ctx:     ctx,
		clock:   clock,
		frame:   frame,
		onFrame: onFrame,
		tween:   NewTween(params.Initial, params.Duration),
	}
}

func (a *Animator) SetTarget(target float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.tween.SetTarget(a.clock.Now(), target) {
		return
	}
	if a.running || a.ctx.Err() != nil {
		return
	}
	a.running = true
	go a.loop()
}

func (a *Animator) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tween.Value(a.clock.Now())
}

func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Animator) loop() {
	ticker := a.clock.NewTicker(a.frame)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.mu.Lock()
			a.running = false
			a.mu.Unlock()
			return
		case <-ticker.Chan():
			a.mu.Lock()
			now := a.clock.Now()
			value := a.tween.Value(now)
			done := a.tween.Done(now)
			if done {
				a.running = false
			}
			a.mu.Unlock()

			if a.onFrame != nil {
				a.onFrame(value)
			}
			if done {
				return
			}
		}
	}
}
