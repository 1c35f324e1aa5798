package serverapp

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/config"
	"github.com/fr3shw3b/tapsync/pkg/rooms"
	"github.com/fr3shw3b/tapsync/pkg/server"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/joho/godotenv"
)

type Options struct {
	Port int
	// The following override their environment counterparts when set.
	ThresholdsFile       string
	RequiredCount        int
	GameOverAfterEffects int
	StatsPushInterval    time.Duration
}

func Run(opts *Options) error {
	err := godotenv.Load(".env.server")
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal("Failed to load environment variables: ", err)
	}

	router := mux.NewRouter()
	httpSrv := &http.Server{
		Addr:        fmt.Sprintf(":%d", opts.Port),
		ReadTimeout: 5 * time.Second,
		// Stats streams stay open for the whole game so writes have no
		// server-wide deadline.
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		Handler:           router,
	}

	conf, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration for server: ", err)
	}
	applyOverrides(conf, opts)

	thresholds, err := config.LoadThresholds(conf.ThresholdsFile)
	if err != nil {
		log.Fatal("Failed to load thresholds: ", err)
	}

	logger := logrus.New()
	logLevel, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	store := rooms.NewInMemoryStore(
		&rooms.InMemoryStoreParams{
			ExpireAfterIdleTime:  conf.ViewerIdleExpiry,
			RequiredCount:        conf.RequiredCount,
			Thresholds:           thresholds,
			GameOverAfterEffects: conf.GameOverAfterEffects,
		},
		logger,
	)

	srv := server.NewDefaultServer(
		&server.ServerParams{
			StatsPushInterval: conf.StatsPushInterval,
		},
		store,
		logger,
	)
	router.PathPrefix("/").Handler(srv)

	log.Printf("Server listening on port %d ... \n", opts.Port)
	return httpSrv.ListenAndServe()
}

func applyOverrides(conf *config.Config, opts *Options) {
	if opts.ThresholdsFile != "" {
		conf.ThresholdsFile = opts.ThresholdsFile
	}
	if opts.RequiredCount > 0 {
		conf.RequiredCount = opts.RequiredCount
	}
	if opts.GameOverAfterEffects > 0 {
		conf.GameOverAfterEffects = opts.GameOverAfterEffects
	}
	if opts.StatsPushInterval > 0 {
		conf.StatsPushInterval = opts.StatsPushInterval
	}
}
