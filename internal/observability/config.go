package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/storefront/internal/config"
)

const (
	defaultServiceName = "storefront"

	protocolGRPC = "grpc"
	protocolHTTP = "http/protobuf"

	// production traces keep one checkout in ten; local runs keep all of them
	prodSamplingRatio = 0.1
	devSamplingRatio  = 1.0
)

// Config is the storefront's telemetry setup. STOREFRONT_* variables win over the generic
// OTEL_*/LOG_* ones so one host can run several services with different settings.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: firstNonEmpty(cfg.AppName, defaultServiceName),
		Environment: lookup(cfg.Environment, "DEPLOYMENT_ENV"),
		Version:     lookup(cfg.AppVersion, "SERVICE_VERSION"),
	}
	dev := isDevEnv(out.Environment)

	out.LogLevel = strings.ToLower(lookup("info", "STOREFRONT_LOG_LEVEL", "LOG_LEVEL"))
	out.LogFormat = strings.ToLower(lookup(defaultLogFormat(dev), "STOREFRONT_LOG_FORMAT", "LOG_FORMAT"))

	out.OtelEnabled = parseBool(lookup("", "STOREFRONT_OTEL_ENABLED", "OTEL_ENABLED"), false)
	out.OtelExporterEndpoint = lookup(cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	out.OtelExporterProtocol = normalizeProtocol(lookup(protocolGRPC, "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "OTEL_EXPORTER_OTLP_PROTOCOL"))

	ratio := devSamplingRatio
	if !dev {
		ratio = prodSamplingRatio
	}
	out.OtelSamplingRatio = clampRatio(parseFloat(lookup("", "STOREFRONT_TRACE_SAMPLING_RATIO", "OTEL_SAMPLING_RATIO"), ratio))
	return out
}

// Debug turns on development logging and stack traces on error.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func defaultLogFormat(dev bool) string {
	if dev {
		return "console"
	}
	return "json"
}

// normalizeProtocol folds the spellings the OTLP exporters accept into the two the providers switch on.
func normalizeProtocol(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "http", "http/protobuf", "http/json":
		return protocolHTTP
	default:
		return protocolGRPC
	}
}

func clampRatio(ratio float64) float64 {
	switch {
	case ratio < 0:
		return 0
	case ratio > 1:
		return 1
	}
	return ratio
}

// lookup returns the first set variable among keys, or def.
func lookup(def string, keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return strings.TrimSpace(def)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			return value
		}
	}
	return ""
}

func parseBool(value string, def bool) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	return def
}

func parseFloat(value string, def float64) float64 {
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}
