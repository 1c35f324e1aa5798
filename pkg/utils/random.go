package utils

import (
	"math/rand"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
)

// GeneratePseudoRandomPresses picks size categories, used to simulate a
// viewer mashing buttons.
func GeneratePseudoRandomPresses(size int) []buttons.Category {
	presses := make([]buttons.Category, size)
	for i := range presses {
		presses[i] = buttons.All[Uint32Random(0, uint32(len(buttons.All)))]
	}
	return presses
}

// JitteredInterval spreads base over [base/2, 3*base/2) so simulated presses
// don't line up with flush ticks.
func JitteredInterval(base time.Duration) time.Duration {
	if base <= 1 {
		return base
	}
	return base/2 + time.Duration(rand.Int63n(int64(base)))
}

func Uint32Random(min uint32, max uint32) uint32 {
	value := rand.Uint32()
	value %= (max - min)
	value += min
	return value
}
