package main

import (
	"log"
	"os"
	"time"

	"github.com/fr3shw3b/tapsync/internal/clientapp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "client",
		Usage: "Buffers button presses and keeps them in sync with the counting service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend-url",
				Usage: "The base URL of the counting service, overrides BACKEND_URL",
			},
			&cli.StringFlag{
				Name:  "room",
				Value: "lobby",
				Usage: "The room to press buttons in",
			},
			&cli.StringFlag{
				Name:  "viewer-id",
				Usage: "An existing viewer id, a new one is acquired when empty",
			},
			&cli.StringFlag{
				Name:  "viewer-name",
				Usage: "The display name to store for the viewer",
			},
			&cli.IntFlag{
				Name:  "presses",
				Value: 0,
				Usage: "The number of random presses to simulate, 0 reads categories from stdin",
			},
			&cli.DurationFlag{
				Name:  "press-interval",
				Value: 100 * time.Millisecond,
				Usage: "The average time between simulated presses",
			},
			&cli.BoolFlag{
				Name:  "observe",
				Usage: "Follow the room's stats without pressing",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return clientapp.Run(&clientapp.Options{
				BackendURL:    cCtx.String("backend-url"),
				RoomID:        cCtx.String("room"),
				ViewerID:      cCtx.String("viewer-id"),
				ViewerName:    cCtx.String("viewer-name"),
				Presses:       cCtx.Int("presses"),
				PressInterval: cCtx.Duration("press-interval"),
				Observe:       cCtx.Bool("observe"),
			})
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
