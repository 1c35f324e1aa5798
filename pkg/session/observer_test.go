package session

import (
	"context"
	"testing"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

type fakeStatsSource struct {
	polls   []*protocol.StatsSnapshot
	pushed  []protocol.StatsSnapshot
	fetches int
}

func (f *fakeStatsSource) FetchStats(ctx context.Context, roomID string) (*protocol.StatsSnapshot, error) {
	snapshot := f.polls[f.fetches]
	f.fetches += 1
	return snapshot, nil
}

func (f *fakeStatsSource) WatchStats(ctx context.Context, roomID string) (<-chan protocol.StatsSnapshot, error) {
	snapshots := make(chan protocol.StatsSnapshot, len(f.pushed))
	for _, snapshot := range f.pushed {
		snapshots <- snapshot
	}
	close(snapshots)
	return snapshots, nil
}

func statsFor(c buttons.Category, current int, gameOver bool) protocol.StatsSnapshot {
	return protocol.StatsSnapshot{
		RoomID:   "room-1",
		Stats:    []protocol.RoomStat{protocol.NewRoomStat(c, current, 100)},
		GameOver: gameOver,
	}
}

func Test_observer_polls_apply_the_reset_policy(t *testing.T) {
	first := statsFor(buttons.Enemy1, 80, false)
	second := statsFor(buttons.Enemy1, 5, false)
	source := &fakeStatsSource{polls: []*protocol.StatsSnapshot{&first, &second}}
	observer := NewObserver(&ObserverParams{RoomID: "room-1", Clock: clockwork.NewFakeClock()}, source, createLogger())

	if err := observer.Poll(context.Background()); err != nil {
		t.Error(err)
		t.FailNow()
	}
	if observer.Snapshot()[buttons.Enemy1].Visual != 80 {
		t.Errorf("expected 80, got %d", observer.Snapshot()[buttons.Enemy1].Visual)
	}

	if err := observer.Poll(context.Background()); err != nil {
		t.Error(err)
		t.FailNow()
	}
	if observer.Snapshot()[buttons.Enemy1].Visual != 5 {
		t.Errorf("expected rollover to 5, got %d", observer.Snapshot()[buttons.Enemy1].Visual)
	}
}

func Test_observer_stream_stops_applying_after_game_over(t *testing.T) {
	source := &fakeStatsSource{pushed: []protocol.StatsSnapshot{
		statsFor(buttons.Skill2, 10, false),
		statsFor(buttons.Skill2, 20, true),
		statsFor(buttons.Skill2, 30, true),
	}}
	gameOvers := 0
	observer := NewObserver(&ObserverParams{
		RoomID:     "room-1",
		Clock:      clockwork.NewFakeClock(),
		OnGameOver: func() { gameOvers += 1 },
	}, source, createLogger())

	if err := observer.RunStream(context.Background()); err != nil {
		t.Error(err)
		t.FailNow()
	}
	if !observer.Ended() || gameOvers != 1 {
		t.Errorf("expected a single game over, got ended=%v hooks=%d", observer.Ended(), gameOvers)
	}
	if observer.Snapshot()[buttons.Skill2].Visual != 20 {
		t.Errorf("expected the final snapshot to be 20, got %d", observer.Snapshot()[buttons.Skill2].Visual)
	}
}
