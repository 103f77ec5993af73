// Package config loads and validates a GRIMOIRE process's runtime
// config document: which checkpoint store backs pause/resume, where
// blobs/events/tracing go, and what flows directory and MCP server
// transports the process exposes. A JSON document, validated against an
// embedded JSON Schema via santhosh-tekuri/jsonschema, loaded with
// encoding/json. Deliberately has no external tool-registry installer
// (Smithery lookup, GitHub-shorthand MCP server fetch, local/curated
// registry merge) — a GRIMOIRE process's only MCP servers are the ones
// it itself exposes to run and resume flows, configured directly, not
// installed from a marketplace.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/wyrdbound/grimoire/docs"
	"github.com/wyrdbound/grimoire/logger"
)

// Config is a GRIMOIRE process's runtime configuration document.
type Config struct {
	Checkpoint CheckpointConfig           `json:"checkpoint"`
	Blob       *BlobConfig                `json:"blob,omitempty"`
	Event      *EventConfig               `json:"event,omitempty"`
	HTTP       *HTTPConfig                `json:"http,omitempty"`
	Log        *LogConfig                 `json:"log,omitempty"`
	FlowsDir   string                     `json:"flowsDir,omitempty"`
	MCPServers map[string]MCPServerConfig `json:"mcpServers,omitempty"`
	Tracing    *TracingConfig             `json:"tracing,omitempty"`
}

// CheckpointConfig selects and configures the Resume/Checkpoint
// Machinery's backing store (checkpoint.Store).
type CheckpointConfig struct {
	Driver string `json:"driver"` // "sqlite" or "postgres"
	DSN    string `json:"dsn"`
}

// BlobConfig configures an optional artifact store (e.g. generated
// character sheets, session transcripts) backing the blob package.
type BlobConfig struct {
	Driver    string `json:"driver,omitempty"` // "filesystem" or "s3"
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// EventConfig configures the host.EventSink backing event bus.
//
// Supported drivers:
//   - "memory" (default, in-process event bus)
//   - "nats" (requires url)
type EventConfig struct {
	Driver string `json:"driver,omitempty"`
	URL    string `json:"url,omitempty"`
}

// HTTPConfig configures the address a GRIMOIRE process's MCP server
// listens on when run over HTTP/SSE transport.
type HTTPConfig struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port,omitempty"`
}

// LogConfig configures the ambient logger's level.
type LogConfig struct {
	Level string `json:"level,omitempty"`
}

// MCPServerConfig describes one MCP server transport this process
// exposes (conventionally "grimoire" itself, running/resuming flows as
// tools).
type MCPServerConfig struct {
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Port      int               `json:"port,omitempty"`
	Transport string            `json:"transport,omitempty"`
}

// TracingConfig controls OpenTelemetry tracing exporter and options.
type TracingConfig struct {
	Exporter    string `json:"exporter,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	ServiceName string `json:"serviceName,omitempty"`
}

// ValidateConfig validates raw JSON against the embedded config schema.
func ValidateConfig(raw []byte) error {
	schema, err := jsonschema.CompileString("flow.config.schema.json", docs.FlowConfigSchema)
	if err != nil {
		return err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

// LoadConfig reads, schema-validates, and unmarshals the config document
// at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("failed to close config file: %v", closeErr)
		}
	}()
	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if err := ValidateConfig(raw); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes cfg to path as indented JSON.
func SaveConfig(path string, cfg *Config) error {
	bytesOut, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytesOut, 0644)
}

// Validate checks the config for required fields and sensible values.
func (c *Config) Validate() error {
	if c.Checkpoint.Driver == "" {
		return fmt.Errorf("config: checkpoint.driver is required")
	}
	if c.Checkpoint.DSN == "" {
		return fmt.Errorf("config: checkpoint.dsn is required")
	}
	if c.HTTP != nil && c.HTTP.Port == 0 {
		return fmt.Errorf("config: http.port must be set and nonzero")
	}
	return nil
}

// UpsertMCPServer adds or updates an MCP server entry in the config.
func UpsertMCPServer(cfg *Config, name string, spec MCPServerConfig) {
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]MCPServerConfig{}
	}
	cfg.MCPServers[name] = spec
}
