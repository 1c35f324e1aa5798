package clientapp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/client"
	"github.com/fr3shw3b/tapsync/pkg/config"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/fr3shw3b/tapsync/pkg/reconcile"
	"github.com/fr3shw3b/tapsync/pkg/session"
	"github.com/fr3shw3b/tapsync/pkg/smoothing"
	"github.com/fr3shw3b/tapsync/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// BackendURL overrides BACKEND_URL when set.
	BackendURL string
	RoomID     string
	ViewerID   string
	ViewerName string
	// Presses is the number of random presses to simulate, 0 reads
	// categories line by line from stdin instead.
	Presses       int
	PressInterval time.Duration
	Observe       bool
}

func Run(opts *Options) error {
	err := godotenv.Load(".env.client")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Failed to load environment variables: ", err)
	}

	conf, err := config.LoadForClient()
	if err != nil {
		log.Fatal("Failed to load configuration for client: ", err)
	}
	if opts.BackendURL != "" {
		conf.BackendURL = opts.BackendURL
	}

	customFormatter := new(logrus.TextFormatter)
	customFormatter.TimestampFormat = "2006-01-02T15:04:05.999999999Z07:00"
	customFormatter.FullTimestamp = true
	logger := logrus.New()
	logger.SetFormatter(customFormatter)
	logLevel, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	syncClient := client.NewDefaultClient(
		&client.ClientParams{
			BaseURL:             conf.BackendURL,
			RequestTimeout:      conf.RequestTimeout,
			MaxIdentityAttempts: conf.MaxIdentityAttempts,
		},
		logger,
	)

	if opts.Observe {
		return observe(ctx, opts, syncClient, logger)
	}

	identity, err := resolveIdentity(ctx, opts, syncClient, logger)
	if err != nil {
		return err
	}

	viewerCount := smoothing.NewAnimator(
		ctx,
		&smoothing.AnimatorParams{Duration: smoothing.ViewerCountDuration, Frame: 100 * time.Millisecond},
		func(value float64) {
			logger.WithField("viewers", int(math.Round(value))).Debug("audience")
		},
	)

	engine := session.NewEngine(
		&session.EngineParams{
			FlushInterval:     conf.FlushInterval,
			HeartbeatInterval: conf.HeartbeatInterval,
			Hooks: session.Hooks{
				OnViewerCount: func(count int) { viewerCount.SetTarget(float64(count)) },
				OnStats:       func(snapshot reconcile.Snapshot) { logGauges(logger, snapshot) },
				OnGameOver: func(protocol.GameOver) {
					logger.Info("game over, input disabled")
				},
			},
		},
		syncClient,
		logger,
	)
	engine.SetIdentity(identity)

	runCtx, cancel := context.WithCancel(ctx)
	runErrs := make(chan error, 1)
	go func() {
		runErrs <- engine.Run(runCtx)
	}()

	if opts.Presses > 0 {
		simulatePresses(ctx, engine, utils.GeneratePseudoRandomPresses(opts.Presses), opts.PressInterval)
	} else {
		readPresses(ctx, engine, os.Stdin, logger)
	}

	drain(ctx, engine, conf.FlushInterval)
	cancel()
	if err := <-runErrs; err != nil {
		return err
	}

	gameOver, ended := engine.GameOver()
	if !ended {
		printProgress(engine.Snapshot(), viewerCount.Value())
		return nil
	}
	printSummary(gameOver.ViewerSummary)
	return printRoomResult(ctx, syncClient, identity.RoomID, identity.ViewerID)
}

func resolveIdentity(
	ctx context.Context,
	opts *Options,
	syncClient client.Client,
	logger *logrus.Logger,
) (session.Identity, error) {
	identity := session.Identity{
		RoomID:     opts.RoomID,
		ViewerID:   opts.ViewerID,
		ViewerName: opts.ViewerName,
	}
	if identity.ViewerID == "" {
		acquired, err := syncClient.AcquireViewer(ctx)
		if err != nil {
			return identity, err
		}
		identity.ViewerID = acquired.ViewerID
		if identity.ViewerName == "" {
			identity.ViewerName = acquired.ViewerName
		}
	}

	if opts.ViewerName != "" {
		stored, err := syncClient.SetViewerName(ctx, identity.ViewerID, opts.ViewerName)
		if err != nil {
			// Submissions carry the name as well so the session can go ahead.
			logger.Warn("failed to store viewer name: ", err)
		} else {
			identity.ViewerName = stored
		}
	}

	logger.WithFields(logrus.Fields{
		"roomId":   identity.RoomID,
		"viewerId": identity.ViewerID,
		"name":     protocol.DisplayName(identity.ViewerID, identity.ViewerName),
	}).Info("joined room")
	return identity, nil
}

func simulatePresses(ctx context.Context, engine *session.Engine, presses []buttons.Category, interval time.Duration) {
	for _, c := range presses {
		if ctx.Err() != nil || engine.Ended() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-engine.Done():
			return
		case <-time.After(utils.JitteredInterval(interval)):
		}
		engine.Record(c)
	}
}

const (
	maxDrainAttempts  = 5
	inFlightPollDelay = 10 * time.Millisecond
)

// drain sends whatever the last tick did not pick up. An exchange already in
// flight is waited out first since a failure puts its batch back; failed
// flushes are retried a few times.
func drain(ctx context.Context, engine *session.Engine, interval time.Duration) {
	failures := 0
	for failures < maxDrainAttempts && !engine.Ended() && ctx.Err() == nil {
		wait := interval
		switch engine.Flush(ctx, false) {
		case session.FlushSkippedIdle, session.FlushSkippedInactive, session.FlushGameOver:
			return
		case session.FlushApplied, session.FlushStale:
			continue
		case session.FlushSkippedInFlight:
			wait = inFlightPollDelay
		default:
			failures += 1
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// readPresses records one press per line naming a category until the input
// ends or the session is over.
func readPresses(ctx context.Context, engine *session.Engine, input io.Reader, logger *logrus.Logger) {
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		if ctx.Err() != nil || engine.Ended() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		c, err := buttons.Parse(line)
		if err != nil {
			logger.Warn(err)
			continue
		}
		engine.Record(c)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("failed to read presses: ", err)
	}
}

func observe(ctx context.Context, opts *Options, syncClient client.Client, logger *logrus.Logger) error {
	observer := session.NewObserver(
		&session.ObserverParams{
			RoomID:     opts.RoomID,
			OnStats:    func(snapshot reconcile.Snapshot) { logGauges(logger, snapshot) },
			OnGameOver: func() { logger.Info("game over") },
		},
		syncClient,
		logger,
	)

	if err := observer.RunStream(ctx); err != nil {
		logger.Warn("stats stream unavailable, falling back to polling: ", err)
		if err := observer.RunPolling(ctx); err != nil {
			return err
		}
	} else if !observer.Ended() && ctx.Err() == nil {
		logger.Warn("stats stream closed, falling back to polling")
		if err := observer.RunPolling(ctx); err != nil {
			return err
		}
	}

	if !observer.Ended() {
		printProgress(observer.Snapshot(), 0)
		return nil
	}
	return printRoomResult(ctx, syncClient, opts.RoomID, opts.ViewerID)
}

func logGauges(logger *logrus.Logger, snapshot reconcile.Snapshot) {
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	fields := logrus.Fields{}
	for _, c := range buttons.All {
		view := snapshot[c]
		fields[string(c)] = int(math.Round(smoothing.GaugeFill(view.Progress) * 100))
	}
	logger.WithFields(fields).Debug("gauges")
}

func printRoomResult(ctx context.Context, syncClient client.Client, roomID string, viewerID string) error {
	result, err := syncClient.FetchRoomResult(ctx, roomID, viewerID)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}
