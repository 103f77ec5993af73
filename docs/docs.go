// Package docs embeds the JSON Schemas validated against flow and
// config documents, via go:embed.
package docs

import _ "embed"

// FlowSchema is the embedded JSON Schema validated against every loaded
// flow document (dsl.Validate), covering the structural shape of §3/§4.5
// beyond what model.Step's and model.Action's UnmarshalYAML already
// reject at decode time.
//
//go:embed flow.schema.json
var FlowSchema string

// FlowConfigSchema is the embedded JSON Schema validated against a
// process's runtime config document (config.LoadConfig): checkpoint
// store driver/dsn, optional blob/event/http/tracing sections, the
// flows directory, and any exposed MCP server transports.
//
//go:embed config.schema.json
var FlowConfigSchema string
