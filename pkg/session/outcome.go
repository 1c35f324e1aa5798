package session

// FlushOutcome reports what a single scheduling decision or exchange did.
type FlushOutcome int

const (
	FlushStarted FlushOutcome = iota
	FlushSkippedInactive
	FlushSkippedInFlight
	FlushSkippedIdle
	FlushApplied
	FlushFailed
	FlushStale
	FlushGameOver
)

var outcomeNames = map[FlushOutcome]string{
	FlushStarted:         "started",
	FlushSkippedInactive: "skipped (inactive)",
	FlushSkippedInFlight: "skipped (in flight)",
	FlushSkippedIdle:     "skipped (idle)",
	FlushApplied:         "applied",
	FlushFailed:          "failed",
	FlushStale:           "stale",
	FlushGameOver:        "game over",
}

func (o FlushOutcome) String() string {
	name, exists := outcomeNames[o]
	if exists {
		return name
	}
	return "unknown"
}
