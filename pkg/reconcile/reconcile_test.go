package reconcile

import (
	"testing"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
)

func counts(c buttons.Category, current int) map[buttons.Category]ServerCount {
	return map[buttons.Category]ServerCount{c: {Current: current, Required: 100}}
}

func Test_optimistic_lead_survives_a_lagging_server_count(t *testing.T) {
	state := NewState()
	Reconcile(state, counts(buttons.Skill1, 10))
	state.Bump(buttons.Skill1)
	state.Bump(buttons.Skill1)

	Reconcile(state, counts(buttons.Skill1, 11))

	if state.Visual(buttons.Skill1) != 12 {
		t.Errorf("expected optimistic value 12 to be kept, got %d", state.Visual(buttons.Skill1))
	}
}

func Test_server_count_ahead_of_display_is_adopted(t *testing.T) {
	state := NewState()
	state.Bump(buttons.Enemy1)
	Reconcile(state, counts(buttons.Enemy1, 30))

	if state.Visual(buttons.Enemy1) != 30 {
		t.Errorf("expected 30, got %d", state.Visual(buttons.Enemy1))
	}
}

func Test_rollover_forces_display_down_regardless_of_optimistic_lead(t *testing.T) {
	state := NewState()
	Reconcile(state, counts(buttons.Enemy2, 80))
	for i := 0; i < 5; i++ {
		state.Bump(buttons.Enemy2)
	}

	Reconcile(state, counts(buttons.Enemy2, 0))

	if state.Visual(buttons.Enemy2) != 0 {
		t.Errorf("expected reset to 0, got %d", state.Visual(buttons.Enemy2))
	}
	if state.LastServer(buttons.Enemy2) != 0 {
		t.Errorf("expected last server count 0, got %d", state.LastServer(buttons.Enemy2))
	}
}

func Test_triggered_effect_resets_display_even_when_the_count_grew(t *testing.T) {
	state := NewState()
	for i := 0; i < 12; i++ {
		state.Bump(buttons.Skill1)
	}

	Reconcile(state, map[buttons.Category]ServerCount{buttons.Skill1: {Current: 2, Required: 10, Rollover: true}})

	if state.Visual(buttons.Skill1) != 2 {
		t.Errorf("expected the rollover to show 2, got %d", state.Visual(buttons.Skill1))
	}
}

func Test_display_never_decreases_without_a_reset(t *testing.T) {
	state := NewState()
	previous := 0
	serverCounts := []int{0, 3, 3, 7, 7, 7, 15, 40, 41}
	for i, serverCount := range serverCounts {
		if i%2 == 0 {
			state.Bump(buttons.Skill3)
		}
		Reconcile(state, counts(buttons.Skill3, serverCount))
		visual := state.Visual(buttons.Skill3)
		if visual < previous {
			t.Errorf("display regressed from %d to %d at step %d", previous, visual, i)
		}
		if visual < serverCount {
			t.Errorf("display %d under-reports server count %d", visual, serverCount)
		}
		previous = visual
	}
}

func Test_progress_may_exceed_one(t *testing.T) {
	state := NewState()
	Reconcile(state, map[buttons.Category]ServerCount{buttons.Skill2: {Current: 150, Required: 100}})

	if state.Progress(buttons.Skill2) != 1.5 {
		t.Errorf("expected progress 1.5, got %v", state.Progress(buttons.Skill2))
	}
	if state.Progress(buttons.Skill1) != 0 {
		t.Error("expected unknown threshold to report zero progress")
	}
}

func Test_reconciler_discards_out_of_order_responses(t *testing.T) {
	r := NewReconciler()
	if !r.Apply(2, counts(buttons.Enemy3, 50)) {
		t.Error("expected first response to apply")
	}
	// An older request answering late must not read as a rollover.
	if r.Apply(1, counts(buttons.Enemy3, 45)) {
		t.Error("expected stale response to be discarded")
	}
	if r.Snapshot()[buttons.Enemy3].Visual != 50 {
		t.Errorf("expected 50, got %d", r.Snapshot()[buttons.Enemy3].Visual)
	}

	r.Reset()
	if !r.Apply(1, counts(buttons.Enemy3, 1)) {
		t.Error("expected sequence to restart after reset")
	}
}

func Test_stats_take_precedence_over_event_results(t *testing.T) {
	progress := &protocol.Progress{
		EventResults: []protocol.EventResult{
			{EventType: buttons.Skill1, CurrentCount: 5, RequiredCount: 100, EffectTriggered: true},
			{EventType: buttons.Enemy1, CurrentCount: 9, RequiredCount: 50},
		},
		Stats: []protocol.RoomStat{protocol.NewRoomStat(buttons.Skill1, 6, 100)},
	}

	merged := CountsFromProgress(progress)
	if merged[buttons.Skill1].Current != 6 || !merged[buttons.Skill1].Rollover {
		t.Errorf("expected stat to win for skill1 and keep the rollover, got %+v", merged[buttons.Skill1])
	}
	if merged[buttons.Enemy1].Current != 9 {
		t.Errorf("expected event result to fill enemy1, got %d", merged[buttons.Enemy1].Current)
	}
}
