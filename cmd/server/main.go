package main

import (
	"log"
	"os"

	"github.com/fr3shw3b/tapsync/internal/serverapp"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "server",
		Usage: "A development stand-in for the button press counting service",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "port",
				Value: 3000,
				Usage: "The port to run the server on",
			},
			&cli.StringFlag{
				Name:  "thresholds-file",
				Usage: "A YAML file of per category required counts, overrides THRESHOLDS_FILE",
			},
			&cli.IntFlag{
				Name:  "required-count",
				Usage: "Presses needed to trigger an effect in categories without a threshold, overrides REQUIRED_COUNT",
			},
			&cli.IntFlag{
				Name:  "game-over-after",
				Usage: "Number of triggered effects after which a room ends, overrides GAME_OVER_AFTER_EFFECTS",
			},
			&cli.DurationFlag{
				Name:  "stats-push-interval",
				Usage: "How often stats are pushed to stream watchers, overrides STATS_PUSH_INTERVAL_MS",
			},
		},
		Action: func(cCtx *cli.Context) error {
			return serverapp.Run(&serverapp.Options{
				Port:                 cCtx.Int("port"),
				ThresholdsFile:       cCtx.String("thresholds-file"),
				RequiredCount:        cCtx.Int("required-count"),
				GameOverAfterEffects: cCtx.Int("game-over-after"),
				StatsPushInterval:    cCtx.Duration("stats-push-interval"),
			})
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
