package clientapp

import (
	"fmt"
	"math"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/fr3shw3b/tapsync/pkg/reconcile"
	"github.com/fr3shw3b/tapsync/pkg/smoothing"
)

func printProgress(snapshot reconcile.Snapshot, viewers float64) {
	fmt.Print("Progress\n____________\n\n\n")
	for _, c := range buttons.All {
		view := snapshot[c]
		fmt.Printf(
			"%-10s %4d / %-4d %3.0f%%\n",
			c.Label(),
			view.Visual,
			view.RequiredCount,
			smoothing.GaugeFill(view.Progress)*100,
		)
	}
	if viewers > 0 {
		fmt.Printf("\nViewers: %d\n", int(math.Round(viewers)))
	}
}

func printSummary(summary *protocol.ViewerSummary) {
	fmt.Print("Your presses\n____________\n\n\n")
	if summary == nil {
		fmt.Println("No summary available")
		return
	}
	for _, c := range buttons.All {
		fmt.Printf("%-10s %d\n", c.Label(), summary.Counts[c])
	}
	fmt.Printf("Total: %d\n\n", summary.Total)
}

func printResult(result *protocol.RoomResult) {
	fmt.Print("Result\n____________\n\n\n")
	if result.TopOverall != nil {
		fmt.Printf(
			"Top viewer: %s (%d)\n\n",
			protocol.DisplayName(result.TopOverall.ViewerID, result.TopOverall.ViewerName),
			result.TopOverall.Count,
		)
	}
	for _, c := range buttons.All {
		top, exists := result.TopByEvent[c]
		if !exists {
			continue
		}
		fmt.Printf("%-10s %s (%d)\n", c.Label(), protocol.DisplayName(top.ViewerID, top.ViewerName), top.Count)
	}
	fmt.Println()
	for i, total := range result.ViewerTotals {
		fmt.Printf("%2d. %s %d\n", i+1, protocol.DisplayName(total.ViewerID, total.ViewerName), total.Count)
	}
}
