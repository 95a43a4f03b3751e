package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all job settings, populated from environment variables.
type Config struct {
	JobName string

	// FCC Broadband Data Collection API.
	BDCBaseURL       string
	BDCUsername      string
	BDCHashValue     string
	BDCState         string
	BDCFilesPerPause int
	BDCPause         time.Duration
	BDCTimeout       time.Duration

	// ArcGIS Online hosted feature services.
	ArcGISToken      string
	ArcGISTimeout    time.Duration
	HexLayerURLs     map[int]string // resolution -> hex polygon layer
	ServiceHexURLs   map[int]string // resolution -> coverage polygon service
	ServiceHexIndex  int
	RecordsURL       string // speed summary table and summary hexes
	RecordsTable     int
	RecordsHexLayer  int
	RecordsRelateIDs bool

	// Optional Redis cache for hex geometry.
	RedisAddr   string
	HexCacheTTL time.Duration

	// Run report notifications.
	KafkaBrokers     []string
	KafkaReportTopic string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunInterval     time.Duration // zero runs once and exits
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}
	bdcPause, err := parseDuration("BDC_PAUSE", "45s", true)
	if err != nil {
		return nil, err
	}
	bdcTimeout, err := parseDuration("BDC_TIMEOUT", "5m", false)
	if err != nil {
		return nil, err
	}
	arcgisTimeout, err := parseDuration("ARCGIS_TIMEOUT", "2m", false)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("HEX_CACHE_TTL", "168h", false)
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "0s", true)
	if err != nil {
		return nil, err
	}
	filesPerPause, err := parseInt("BDC_FILES_PER_PAUSE", 10, 1)
	if err != nil {
		return nil, err
	}
	serviceIndex, err := parseInt("SERVICE_HEXES_INDEX", 0, 0)
	if err != nil {
		return nil, err
	}
	recordsTable, err := parseInt("SERVICE_RECORDS_TABLE_INDEX", 0, 0)
	if err != nil {
		return nil, err
	}
	recordsHexLayer, err := parseInt("SERVICE_RECORDS_HEX_INDEX", 0, 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		JobName: sharedcfg.EnvOrDefault("JOB_NAME", "broadband-data"),

		BDCBaseURL:       sharedcfg.EnvOrDefault("BDC_BASE_URL", "https://bdc.fcc.gov/api/public/map"),
		BDCUsername:      os.Getenv("BDC_USERNAME"),
		BDCHashValue:     os.Getenv("BDC_HASH_VALUE"),
		BDCState:         sharedcfg.EnvOrDefault("BDC_STATE", "Utah"),
		BDCFilesPerPause: filesPerPause,
		BDCPause:         bdcPause,
		BDCTimeout:       bdcTimeout,

		ArcGISToken:   os.Getenv("ARCGIS_TOKEN"),
		ArcGISTimeout: arcgisTimeout,
		HexLayerURLs: map[int]string{
			6: os.Getenv("HEX_LAYER_6_URL"),
			7: os.Getenv("HEX_LAYER_7_URL"),
			8: os.Getenv("HEX_LAYER_8_URL"),
		},
		ServiceHexURLs: map[int]string{
			6: os.Getenv("SERVICE_HEXES_6_URL"),
			7: os.Getenv("SERVICE_HEXES_7_URL"),
			8: os.Getenv("SERVICE_HEXES_8_URL"),
		},
		ServiceHexIndex:  serviceIndex,
		RecordsURL:       os.Getenv("SERVICE_RECORDS_URL"),
		RecordsTable:     recordsTable,
		RecordsHexLayer:  recordsHexLayer,
		RecordsRelateIDs: sharedcfg.EnvOrDefault("SERVICE_RECORDS_RELATIONSHIP", "true") == "true",

		RedisAddr:   os.Getenv("REDIS_ADDR"),
		HexCacheTTL: cacheTTL,

		KafkaBrokers:     sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaReportTopic: sharedcfg.EnvOrDefault("KAFKA_REPORT_TOPIC", "broadband-run-reports"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunInterval:     runInterval,
	}

	if cfg.BDCUsername == "" {
		return nil, errors.New("BDC_USERNAME is required")
	}
	if cfg.BDCHashValue == "" {
		return nil, errors.New("BDC_HASH_VALUE is required")
	}
	for _, res := range []int{6, 7, 8} {
		if cfg.HexLayerURLs[res] == "" {
			return nil, fmt.Errorf("HEX_LAYER_%d_URL is required", res)
		}
		if cfg.ServiceHexURLs[res] == "" {
			return nil, fmt.Errorf("SERVICE_HEXES_%d_URL is required", res)
		}
	}
	if cfg.RecordsURL == "" {
		return nil, errors.New("SERVICE_RECORDS_URL is required")
	}

	return cfg, nil
}

func parseDuration(key, fallback string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}
