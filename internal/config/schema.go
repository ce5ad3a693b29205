// Package config loads the service configuration from YAML and watches it for
// changes, and provides the store-backed severity lookup used when
// materializing notifications.
package config

import "fmt"

// Config is the root of the YAML configuration file.
type Config struct {
	// HTTPAddr is the REST/WebSocket listen address.
	HTTPAddr string `yaml:"http_addr"`
	// NATSURL points at the message bus.
	NATSURL string `yaml:"nats_url"`
	// DBPath is the SQLite database location.
	DBPath string `yaml:"db_path"`
	// RoutePrefix is prepended to object paths to build notification action
	// URLs.
	RoutePrefix string `yaml:"route_prefix"`

	Engine EngineConf `yaml:"engine"`

	// EventTypes seed the event_types configuration table at startup and on
	// hot-reload.
	EventTypes []EventTypeConf `yaml:"event_types"`
	// Severities seed the severity_levels table.
	Severities []SeverityConf `yaml:"severities"`

	// UI is served verbatim on the UI configuration endpoint, never
	// interpreted here.
	UI map[string]any `yaml:"ui"`
}

// EngineConf sizes the fan-out engine's worker pools.
type EngineConf struct {
	// EventWorkers process incoming events concurrently.
	EventWorkers int `yaml:"event_workers"`
	// DeliveryWorkers bound concurrent per-recipient deliveries.
	DeliveryWorkers int `yaml:"delivery_workers"`
	// QueueDepth is the bounded event intake queue capacity.
	QueueDepth int `yaml:"queue_depth"`
}

// EventTypeConf declares a known event type and its default severity.
type EventTypeConf struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	Description string `yaml:"description"`
	Severity    string `yaml:"severity"`
}

// SeverityConf declares a severity level and its display configuration.
type SeverityConf struct {
	ID             string `yaml:"id"`
	Label          string `yaml:"label"`
	Description    string `yaml:"description"`
	BootstrapClass string `yaml:"bootstrap_class"`
	Priority       int    `yaml:"priority"`
}

// Validate rejects configurations the service cannot run with.
func Validate(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("http_addr is required")
	}
	if cfg.NATSURL == "" {
		return fmt.Errorf("nats_url is required")
	}
	if cfg.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	seen := make(map[string]bool, len(cfg.EventTypes))
	for _, et := range cfg.EventTypes {
		if et.ID == "" {
			return fmt.Errorf("event type with empty id")
		}
		if seen[et.ID] {
			return fmt.Errorf("duplicate event type %q", et.ID)
		}
		seen[et.ID] = true
	}
	for _, sv := range cfg.Severities {
		if sv.ID == "" {
			return fmt.Errorf("severity with empty id")
		}
	}
	return nil
}
