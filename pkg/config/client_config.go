package config

import (
	"os"
	"time"
)

type ClientConfig struct {
	BackendURL          string
	FlushInterval       time.Duration
	HeartbeatInterval   time.Duration
	RequestTimeout      time.Duration
	MaxIdentityAttempts int
	LogLevel            string
}

func LoadForClient() (*ClientConfig, error) {
	backendURL, backendURLExists := os.LookupEnv("BACKEND_URL")
	if !backendURLExists {
		backendURL = "http://localhost:3000"
	}

	flushIntervalMS, err := intFromEnv("FLUSH_INTERVAL_MS", 1500)
	if err != nil {
		return nil, err
	}

	heartbeatIntervalMS, err := intFromEnv("HEARTBEAT_INTERVAL_MS", 1500)
	if err != nil {
		return nil, err
	}

	requestTimeoutMS, err := intFromEnv("REQUEST_TIMEOUT_MS", 5000)
	if err != nil {
		return nil, err
	}

	maxIdentityAttempts, err := intFromEnv("MAX_IDENTITY_ATTEMPTS", 10)
	if err != nil {
		return nil, err
	}

	logLevel, logLevelExists := os.LookupEnv("LOG_LEVEL")
	if !logLevelExists {
		logLevel = "info"
	}

	return &ClientConfig{
		BackendURL:          backendURL,
		FlushInterval:       time.Duration(flushIntervalMS) * time.Millisecond,
		HeartbeatInterval:   time.Duration(heartbeatIntervalMS) * time.Millisecond,
		RequestTimeout:      time.Duration(requestTimeoutMS) * time.Millisecond,
		MaxIdentityAttempts: maxIdentityAttempts,
		LogLevel:            logLevel,
	}, nil
}
