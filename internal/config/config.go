// Package config reads deployment configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds settings that are not part of the command line.
type Config struct {
	LogFormat   string
	MetricsFile string

	AWSRegion      string
	AWSEndpointURL string // For LocalStack

	ReportQueueURL string
	ReportTable    string
	ReportTimeout  time.Duration

	OTelEndpoint string
	OTelEnabled  bool
}

// LoadConfig reads configuration from environment variables with defaults.
func LoadConfig() Config {
	otelEndpoint := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	if ep := getEnv("ATTEMPT_OTEL_ENDPOINT", ""); ep != "" {
		otelEndpoint = ep
	}

	return Config{
		LogFormat:      getEnv("ATTEMPT_LOG_FORMAT", "text"),
		MetricsFile:    getEnv("ATTEMPT_METRICS_FILE", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""), // Empty = real AWS
		ReportQueueURL: getEnv("ATTEMPT_REPORT_SQS_QUEUE_URL", ""),
		ReportTable:    getEnv("ATTEMPT_REPORT_DYNAMODB_TABLE", ""),
		ReportTimeout:  time.Duration(getEnvInt("ATTEMPT_REPORT_TIMEOUT", 10)) * time.Second,
		OTelEndpoint:   otelEndpoint,
		OTelEnabled:    getEnvBool("ATTEMPT_OTEL_ENABLED", false) || otelEndpoint != "",
	}
}

// ReportingEnabled reports whether any run-record sink is configured.
func (c Config) ReportingEnabled() bool {
	return c.ReportQueueURL != "" || c.ReportTable != ""
}

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
