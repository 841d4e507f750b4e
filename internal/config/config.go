package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// MaxWeatherTimeout bounds a single weather request.
const MaxWeatherTimeout = 10 * time.Second

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DatabasePath string

	// OpenWeatherMap configuration.
	WeatherAPIKey  string
	WeatherBaseURL string
	WeatherTimeout time.Duration

	// AI recommendation configuration.
	OpenAIAPIKey  string
	OpenAIBaseURL string
	AIEnabled     bool
	AIModel       string
	AITimeout     time.Duration
	AICacheSize   int

	// Assessment pipeline configuration.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	weatherTimeout, err := parseDuration("WEATHER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	if weatherTimeout > MaxWeatherTimeout {
		return nil, fmt.Errorf("WEATHER_TIMEOUT must not exceed %s", MaxWeatherTimeout)
	}

	aiTimeout, err := parseDuration("AI_TIMEOUT", "20s")
	if err != nil {
		return nil, err
	}

	aiCacheSize, err := parsePositiveInt("AI_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	aiEnabled := openAIKey != ""
	if v := os.Getenv("AI_ENABLED"); v != "" {
		aiEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DatabasePath: sharedcfg.EnvOrDefault("DATABASE_PATH", "data/heatrisk.db"),

		WeatherAPIKey:  os.Getenv("WEATHER_API_KEY"),
		WeatherBaseURL: sharedcfg.EnvOrDefault("WEATHER_BASE_URL", "https://api.openweathermap.org"),
		WeatherTimeout: weatherTimeout,

		OpenAIAPIKey:  openAIKey,
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		AIEnabled:     aiEnabled,
		AIModel:       sharedcfg.EnvOrDefault("AI_MODEL", "gpt-4o-mini"),
		AITimeout:     aiTimeout,
		AICacheSize:   aiCacheSize,

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "patient-records"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "risk-assessments"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "maternal-heat-risk"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.DatabasePath == "" {
		return nil, errors.New("DATABASE_PATH is required")
	}
	if cfg.AIEnabled && cfg.OpenAIAPIKey == "" {
		return nil, errors.New("AI_ENABLED is true but OPENAI_API_KEY is not set")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parseDuration(name, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(name, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return d, nil
}

func parsePositiveInt(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}
