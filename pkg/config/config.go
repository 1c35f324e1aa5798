package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"gopkg.in/yaml.v3"
)

type Config struct {
	RequiredCount        int
	ViewerIdleExpiry     int
	GameOverAfterEffects int
	StatsPushInterval    time.Duration
	ThresholdsFile       string
	LogLevel             string
}

func Load() (*Config, error) {
	requiredCount, err := intFromEnv("REQUIRED_COUNT", 100)
	if err != nil {
		return nil, err
	}
	if requiredCount <= 0 {
		return nil, fmt.Errorf("REQUIRED_COUNT must be positive, got %d", requiredCount)
	}

	viewerIdleExpiry, err := intFromEnv("VIEWER_IDLE_EXPIRY", 30)
	if err != nil {
		return nil, err
	}

	gameOverAfterEffects, err := intFromEnv("GAME_OVER_AFTER_EFFECTS", 0)
	if err != nil {
		return nil, err
	}

	statsPushIntervalMS, err := intFromEnv("STATS_PUSH_INTERVAL_MS", 1000)
	if err != nil {
		return nil, err
	}

	logLevel, logLevelExists := os.LookupEnv("LOG_LEVEL")
	if !logLevelExists {
		logLevel = "info"
	}

	return &Config{
		RequiredCount:        requiredCount,
		ViewerIdleExpiry:     viewerIdleExpiry,
		GameOverAfterEffects: gameOverAfterEffects,
		StatsPushInterval:    time.Duration(statsPushIntervalMS) * time.Millisecond,
		ThresholdsFile:       os.Getenv("THRESHOLDS_FILE"),
		LogLevel:             logLevel,
	}, nil
}

type thresholdsFile struct {
	Thresholds map[string]int `yaml:"thresholds"`
}

// LoadThresholds reads per category required counts, for example:
//
//	thresholds:
//	  skill1: 50
//	  enemy3: 200
//
// An empty path yields no overrides.
func LoadThresholds(path string) (map[buttons.Category]int, error) {
	thresholds := map[buttons.Category]int{}
	if path == "" {
		return thresholds, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thresholds file: %w", err)
	}

	parsed := thresholdsFile{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse thresholds file %s: %w", path, err)
	}

	for name, required := range parsed.Thresholds {
		c, err := buttons.Parse(name)
		if err != nil {
			return nil, err
		}
		if required <= 0 {
			return nil, fmt.Errorf("threshold for %s must be positive, got %d", c, required)
		}
		thresholds[c] = required
	}
	return thresholds, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
