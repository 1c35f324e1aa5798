package reconcile

import (
	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
)

// ServerCount is the authoritative state of one category as last reported.
type ServerCount struct {
	Current  int
	Required int
	// Rollover is set when the service reports the threshold was crossed
	// by this very response, which a lower count alone cannot reveal.
	Rollover bool
}

// State is the reconciliation state owned by a single session. It is passed by
// reference to Reconcile on every response.
type State struct {
	lastServer map[buttons.Category]int
	visual     map[buttons.Category]int
	required   map[buttons.Category]int
}

func NewState() *State {
	return &State{
		lastServer: map[buttons.Category]int{},
		visual:     map[buttons.Category]int{},
		required:   map[buttons.Category]int{},
	}
}

// Reconcile merges authoritative counts into the displayed ones. A rollover
// replaces whatever is displayed; otherwise the displayed value only ever
// moves up.
func Reconcile(state *State, counts map[buttons.Category]ServerCount) {
	for c, count := range counts {
		if count.Rollover || count.Current < state.lastServer[c] {
			state.visual[c] = count.Current
		} else if count.Current > state.visual[c] {
			state.visual[c] = count.Current
		}
		state.lastServer[c] = count.Current
		if count.Required > 0 {
			state.required[c] = count.Required
		}
	}
}

// Bump applies an optimistic local press ahead of confirmation.
func (s *State) Bump(c buttons.Category) {
	s.visual[c] += 1
}

func (s *State) Visual(c buttons.Category) int {
	return s.visual[c]
}

func (s *State) LastServer(c buttons.Category) int {
	return s.lastServer[c]
}

// Progress is visual over required. It may exceed 1 and is 0 until a
// threshold is known.
func (s *State) Progress(c buttons.Category) float64 {
	required := s.required[c]
	if required <= 0 {
		return 0
	}
	return float64(s.visual[c]) / float64(required)
}

// CountsFromProgress builds the per category input for Reconcile. The stat
// snapshot covers every category; event results fill in categories it lacks.
func CountsFromProgress(progress *protocol.Progress) map[buttons.Category]ServerCount {
	counts := map[buttons.Category]ServerCount{}
	if progress == nil {
		return counts
	}
	for _, result := range progress.EventResults {
		counts[result.EventType] = ServerCount{
			Current:  result.CurrentCount,
			Required: result.RequiredCount,
			Rollover: result.EffectTriggered,
		}
	}
	for _, stat := range progress.Stats {
		counts[stat.ButtonName] = ServerCount{
			Current:  stat.CurrentCount,
			Required: stat.RequiredCount,
			Rollover: counts[stat.ButtonName].Rollover,
		}
	}
	return counts
}

func CountsFromStats(stats []protocol.RoomStat) map[buttons.Category]ServerCount {
	return CountsFromProgress(&protocol.Progress{Stats: stats})
}

// CategoryView is a read-only copy of one category's reconciled values.
type CategoryView struct {
	Category      buttons.Category
	Visual        int
	ServerCount   int
	RequiredCount int
	Progress      float64
}

type Snapshot map[buttons.Category]CategoryView

func (s *State) Snapshot() Snapshot {
	snapshot := make(Snapshot, len(buttons.All))
	for _, c := range buttons.All {
		snapshot[c] = CategoryView{
			Category:      c,
			Visual:        s.visual[c],
			ServerCount:   s.lastServer[c],
			RequiredCount: s.required[c],
			Progress:      s.Progress(c),
		}
	}
	return snapshot
}

// Reconciler wraps State with a sequence guard so a response older than the
// newest applied one is dropped instead of being mistaken for a rollover.
type Reconciler struct {
	state   *State
	lastSeq uint64
}

func NewReconciler() *Reconciler {
	return &Reconciler{state: NewState()}
}

// Apply reconciles counts tagged with the request sequence that produced them.
// It reports false when the response is out of order.
func (r *Reconciler) Apply(seq uint64, counts map[buttons.Category]ServerCount) bool {
	if seq <= r.lastSeq {
		return false
	}
	r.lastSeq = seq
	Reconcile(r.state, counts)
	return true
}

func (r *Reconciler) Bump(c buttons.Category) {
	r.state.Bump(c)
}

func (r *Reconciler) State() *State {
	return r.state
}

func (r *Reconciler) Snapshot() Snapshot {
	return r.state.Snapshot()
}

// Reset forgets everything, including the sequence high-water mark.
func (r *Reconciler) Reset() {
	r.state = NewState()
	r.lastSeq = 0
}
