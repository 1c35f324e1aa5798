package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buffer"
	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/fr3shw3b/tapsync/pkg/reconcile"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	DefaultFlushInterval     = 1500 * time.Millisecond
	DefaultHeartbeatInterval = 1500 * time.Millisecond
)

var errEmptyResponse = errors.New("empty response from transport")

// Identity is supplied by whatever persists the viewer between visits.
type Identity struct {
	RoomID     string
	ViewerID   string
	ViewerName string
}

func (i Identity) Complete() bool {
	return i.RoomID != "" && i.ViewerID != ""
}

func (i Identity) sameSession(other Identity) bool {
	return i.RoomID == other.RoomID && i.ViewerID == other.ViewerID
}

// Transport performs one submit exchange with the counting service.
type Transport interface {
	Submit(ctx context.Context, roomID string, seq uint64, request protocol.SubmitRequest) (*protocol.SubmitResponse, error)
}

// Hooks are called outside the engine lock, from whichever goroutine
// completed the exchange.
type Hooks struct {
	OnGameOver    func(protocol.GameOver)
	OnViewerCount func(int)
	OnStats       func(reconcile.Snapshot)
}

type EngineParams struct {
	FlushInterval     time.Duration
	HeartbeatInterval time.Duration
	Clock             clockwork.Clock
	Hooks             Hooks
}

// Engine buffers presses for one viewer in one room and keeps them in sync
// with the counting service. At most one exchange is in flight at any time.
type Engine struct {
	params    EngineParams
	transport Transport
	clock     clockwork.Clock
	logger    *logrus.Logger

	mu          sync.Mutex
	identity    Identity
	buffer      *buffer.Buffer
	reconciler  *reconcile.Reconciler
	inFlight    bool
	lastFlushAt time.Time
	// generation changes with room or viewer so exchanges started for the
	// previous identity are never applied.
	generation uint64
	seq        uint64
	ended      bool
	gameOver   *protocol.GameOver
	done       chan struct{}

	flights sync.WaitGroup
}

type flushJob struct {
	identity   Identity
	events     []protocol.PushEvent
	generation uint64
	seq        uint64
}

func NewEngine(params *EngineParams, transport Transport, logger *logrus.Logger) *Engine {
	resolved := *params
	if resolved.FlushInterval <= 0 {
		resolved.FlushInterval = DefaultFlushInterval
	}
	if resolved.HeartbeatInterval <= 0 {
		resolved.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if resolved.Clock == nil {
		resolved.Clock = clockwork.NewRealClock()
	}
	return &Engine{
		params:      resolved,
		transport:   transport,
		clock:       resolved.Clock,
		logger:      logger,
		buffer:      buffer.New(),
		reconciler:  reconcile.NewReconciler(),
		lastFlushAt: resolved.Clock.Now(),
		done:        make(chan struct{}),
	}
}

// SetIdentity switches the active room or viewer. Pending presses and
// reconciled counts belong to the previous identity and are dropped; a
// display name change alone keeps them. Ignored once the session has ended.
func (e *Engine) SetIdentity(identity Identity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ended {
		return
	}
	changed := !e.identity.sameSession(identity)
	e.identity = identity
	if !changed {
		return
	}

	e.buffer.Reset()
	e.reconciler.Reset()
	e.generation += 1
	e.lastFlushAt = e.clock.Now()
	e.logger.WithFields(logrus.Fields{
		"roomId":   identity.RoomID,
		"viewerId": identity.ViewerID,
	}).Debug("session identity changed")
}

// Record counts one press. It is a no-op without a complete identity or
// after the session has ended.
func (e *Engine) Record(c buttons.Category) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ended || !e.identity.Complete() {
		return false
	}
	if !e.buffer.Record(c) {
		return false
	}
	e.reconciler.Bump(c)
	return true
}

// Run ticks until ctx is done or the session ends, then waits for the
// exchange in flight to finish.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.params.FlushInterval)
	defer func() {
		ticker.Stop()
		e.flights.Wait()
	}()

	e.mu.Lock()
	e.lastFlushAt = e.clock.Now()
	e.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-e.done:
			e.logger.Info("session ended, flush scheduling stopped")
			return nil
		case <-ticker.Chan():
			e.Tick(ctx)
		}
	}
}

// Tick makes one scheduling decision and starts the exchange in the
// background when there is something to send.
func (e *Engine) Tick(ctx context.Context) FlushOutcome {
	job, outcome := e.begin(false)
	if job == nil {
		return outcome
	}
	go e.exchange(ctx, job)
	return FlushStarted
}

// Flush performs one exchange synchronously. With force, a heartbeat is sent
// even if one is not due yet.
func (e *Engine) Flush(ctx context.Context, force bool) FlushOutcome {
	job, outcome := e.begin(force)
	if job == nil {
		return outcome
	}
	return e.exchange(ctx, job)
}

func (e *Engine) begin(force bool) (*flushJob, FlushOutcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ended || !e.identity.Complete() {
		return nil, FlushSkippedInactive
	}
	if e.inFlight {
		return nil, FlushSkippedInFlight
	}
	heartbeatDue := e.clock.Since(e.lastFlushAt) >= e.params.HeartbeatInterval
	if e.buffer.Empty() && !heartbeatDue && !force {
		return nil, FlushSkippedIdle
	}

	e.inFlight = true
	e.seq += 1
	e.flights.Add(1)
	return &flushJob{
		identity:   e.identity,
		events:     e.buffer.Drain(),
		generation: e.generation,
		seq:        e.seq,
	}, FlushStarted
}

func (e *Engine) exchange(ctx context.Context, job *flushJob) FlushOutcome {
	defer e.flights.Done()

	fields := logrus.Fields{
		"roomId": job.identity.RoomID,
		"seq":    job.seq,
		"events": len(job.events),
	}
	e.logger.WithFields(fields).Debug("flushing presses")

	resp, err := e.transport.Submit(ctx, job.identity.RoomID, job.seq, protocol.SubmitRequest{
		ViewerID:   job.identity.ViewerID,
		ViewerName: job.identity.ViewerName,
		PushEvents: job.events,
	})
	if err == nil && resp == nil {
		err = errEmptyResponse
	}

	e.mu.Lock()
	e.inFlight = false

	if job.generation != e.generation {
		e.mu.Unlock()
		e.logger.WithFields(fields).Debug("discarding response for a previous identity")
		return FlushStale
	}

	if err != nil {
		e.buffer.Restore(job.events)
		e.mu.Unlock()
		e.logger.WithFields(fields).Warn("flush failed, presses kept for retry: ", err)
		return FlushFailed
	}

	e.lastFlushAt = e.clock.Now()
	if ctx.Err() != nil {
		e.mu.Unlock()
		e.logger.WithFields(fields).Debug("discarding response after cancellation")
		return FlushStale
	}

	if resp.Terminal() {
		first := e.endLocked(*resp.GameOver)
		e.mu.Unlock()
		if first && e.params.Hooks.OnGameOver != nil {
			e.params.Hooks.OnGameOver(*resp.GameOver)
		}
		return FlushGameOver
	}

	applied := e.reconciler.Apply(job.seq, reconcile.CountsFromProgress(resp.Progress))
	snapshot := e.reconciler.Snapshot()
	e.mu.Unlock()

	if !applied {
		e.logger.WithFields(fields).Debug("discarding out of order response")
		return FlushStale
	}
	if e.params.Hooks.OnViewerCount != nil && len(resp.Progress.EventResults) > 0 {
		e.params.Hooks.OnViewerCount(resp.Progress.EventResults[0].ViewerCount)
	}
	if e.params.Hooks.OnStats != nil {
		e.params.Hooks.OnStats(snapshot)
	}
	return FlushApplied
}

// endLocked marks the session ended. Only the first call has any effect.
func (e *Engine) endLocked(gameOver protocol.GameOver) bool {
	if e.ended {
		return false
	}
	e.ended = true
	e.gameOver = &gameOver
	close(e.done)
	e.logger.WithFields(logrus.Fields{
		"roomId":   e.identity.RoomID,
		"viewerId": e.identity.ViewerID,
	}).Info("game over")
	return true
}

func (e *Engine) Snapshot() reconcile.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconciler.Snapshot()
}

func (e *Engine) Pending(c buttons.Category) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Pending(c)
}

func (e *Engine) PendingTotal() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buffer.Total()
}

func (e *Engine) LastFlushAt() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastFlushAt
}

func (e *Engine) Identity() Identity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.identity
}

func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

// GameOver returns the terminal payload once the session has ended.
func (e *Engine) GameOver() (protocol.GameOver, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gameOver == nil {
		return protocol.GameOver{}, false
	}
	return *e.gameOver, true
}

// Done is closed when the session ends.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}
