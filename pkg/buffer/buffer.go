package buffer

import (
	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
)

// Buffer holds the presses recorded since the last successful flush.
// It is not safe for concurrent use, the owner serialises access.
type Buffer struct {
	pending map[buttons.Category]int
}

func New() *Buffer {
	return &Buffer{pending: emptyCounts()}
}

func emptyCounts() map[buttons.Category]int {
	counts := make(map[buttons.Category]int, len(buttons.All))
	for _, c := range buttons.All {
		counts[c] = 0
	}
	return counts
}

// Record adds a single press. Unknown categories are ignored.
func (b *Buffer) Record(c buttons.Category) bool {
	if !c.Valid() {
		return false
	}
	b.pending[c] += 1
	return true
}

// Drain returns every non-zero count and zeroes it in the same step.
func (b *Buffer) Drain() []protocol.PushEvent {
	events := []protocol.PushEvent{}
	for _, c := range buttons.All {
		count := b.pending[c]
		if count > 0 {
			events = append(events, protocol.PushEvent{ButtonName: c, PushCount: count})
			b.pending[c] = 0
		}
	}
	return events
}

// Restore adds a previously drained batch back on top of whatever was recorded since.
func (b *Buffer) Restore(events []protocol.PushEvent) {
	for _, event := range events {
		if event.PushCount <= 0 || !event.ButtonName.Valid() {
			continue
		}
		b.pending[event.ButtonName] += event.PushCount
	}
}

func (b *Buffer) Reset() {
	b.pending = emptyCounts()
}

func (b *Buffer) Pending(c buttons.Category) int {
	return b.pending[c]
}

func (b *Buffer) Total() int {
	total := 0
	for _, count := range b.pending {
		total += count
	}
	return total
}

func (b *Buffer) Empty() bool {
	return b.Total() == 0
}
