package session

import (
	"context"
	"sync"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/fr3shw3b/tapsync/pkg/reconcile"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// StatsSource is the read-only side of the counting service.
type StatsSource interface {
	FetchStats(ctx context.Context, roomID string) (*protocol.StatsSnapshot, error)
	WatchStats(ctx context.Context, roomID string) (<-chan protocol.StatsSnapshot, error)
}

type ObserverParams struct {
	RoomID       string
	PollInterval time.Duration
	Clock        clockwork.Clock
	OnStats      func(reconcile.Snapshot)
	OnGameOver   func()
}

// Observer follows a room's stats without pressing, for example while a
// participant rejoins. Snapshots go through the same reconciliation as
// submit responses.
type Observer struct {
	params ObserverParams
	source StatsSource
	clock  clockwork.Clock
	logger *logrus.Logger

	mu         sync.Mutex
	reconciler *reconcile.Reconciler
	seq        uint64
	ended      bool
}

func NewObserver(params *ObserverParams, source StatsSource, logger *logrus.Logger) *Observer {
	resolved := *params
	if resolved.PollInterval <= 0 {
		resolved.PollInterval = DefaultFlushInterval
	}
	if resolved.Clock == nil {
		resolved.Clock = clockwork.NewRealClock()
	}
	return &Observer{
		params:     resolved,
		source:     source,
		clock:      resolved.Clock,
		logger:     logger,
		reconciler: reconcile.NewReconciler(),
	}
}

// Poll fetches the stats once and applies them.
func (o *Observer) Poll(ctx context.Context) error {
	o.mu.Lock()
	o.seq += 1
	seq := o.seq
	o.mu.Unlock()

	snapshot, err := o.source.FetchStats(ctx, o.params.RoomID)
	if err != nil {
		return err
	}
	o.apply(seq, snapshot)
	return nil
}

// RunPolling polls on every interval until ctx is done or the room ends.
// Failed polls are logged and retried on the next tick.
func (o *Observer) RunPolling(ctx context.Context) error {
	ticker := o.clock.NewTicker(o.params.PollInterval)
	defer ticker.Stop()

	for !o.Ended() {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := o.Poll(ctx); err != nil && ctx.Err() == nil {
				o.logger.Warn("stats poll failed: ", err)
			}
		}
	}
	return nil
}

// RunStream applies snapshots pushed by the service until the stream closes.
func (o *Observer) RunStream(ctx context.Context) error {
	snapshots, err := o.source.WatchStats(ctx, o.params.RoomID)
	if err != nil {
		return err
	}
	for snapshot := range snapshots {
		o.mu.Lock()
		o.seq += 1
		seq := o.seq
		o.mu.Unlock()

		snapshot := snapshot
		o.apply(seq, &snapshot)
	}
	return nil
}

func (o *Observer) apply(seq uint64, snapshot *protocol.StatsSnapshot) {
	o.mu.Lock()
	if o.ended {
		o.mu.Unlock()
		return
	}
	applied := o.reconciler.Apply(seq, reconcile.CountsFromStats(snapshot.Stats))
	view := o.reconciler.Snapshot()
	first := false
	if snapshot.GameOver {
		o.ended = true
		first = true
	}
	o.mu.Unlock()

	if applied && o.params.OnStats != nil {
		o.params.OnStats(view)
	}
	if first {
		o.logger.WithField("roomId", o.params.RoomID).Info("room ended")
		if o.params.OnGameOver != nil {
			o.params.OnGameOver()
		}
	}
}

func (o *Observer) Snapshot() reconcile.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reconciler.Snapshot()
}

func (o *Observer) Ended() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ended
}
