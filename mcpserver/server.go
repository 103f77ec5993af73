// Package mcpserver exposes a GRIMOIRE process's flow operations — run,
// resume, validate, lint — as MCP tools over metoro-io/mcp-golang, so an
// MCP-speaking client (an LLM host, another agent) can drive flows the
// same way the terminal CLI does.
package mcpserver

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	mcp "github.com/metoro-io/mcp-golang"
	mcphttp "github.com/metoro-io/mcp-golang/transport/http"
	mcpstdio "github.com/metoro-io/mcp-golang/transport/stdio"

	"github.com/wyrdbound/grimoire/checkpoint"
	"github.com/wyrdbound/grimoire/dsl"
	"github.com/wyrdbound/grimoire/engine"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/logger"
	"github.com/wyrdbound/grimoire/registry"
)

// ToolRegistration holds a tool's registration info for the MCP server.
type ToolRegistration struct {
	Name        string
	Description string
	Handler     any // must be a func(ctx context.Context, args T) (*mcp.ToolResponse, error)
}

// Serve starts an MCP server exposing tools, either on stdio or over
// HTTP at addr. stdio transport with debug disabled silences
// user-facing logs on stdout, since stdio is also the wire protocol.
func Serve(stdio bool, addr string, debug bool, tools []ToolRegistration) error {
	if stdio && !debug {
		logger.SetUserOutput(io.Discard)
	}

	var server *mcp.Server
	if stdio {
		logger.Info("starting MCP server on stdio")
		server = mcp.NewServer(mcpstdio.NewStdioServerTransport())
	} else {
		logger.Info("starting MCP server on HTTP at %s", addr)
		server = mcp.NewServer(mcphttp.NewHTTPTransport("/mcp").WithAddr(addr))
	}

	for _, t := range tools {
		if err := server.RegisterTool(t.Name, t.Description, t.Handler); err != nil {
			logger.Error("failed to register MCP tool %s: %v", t.Name, err)
		}
	}

	if err := server.Serve(); err != nil {
		return err
	}

	if stdio {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal %v, shutting down MCP stdio server", sig)
	}
	return nil
}

// RunFlowArgs is the tool argument shape for run_flow.
type RunFlowArgs struct {
	FlowPath string         `json:"flow_path"`
	Inputs   map[string]any `json:"inputs,omitempty"`
}

// ResumeFlowArgs is the tool argument shape for resume_flow.
type ResumeFlowArgs struct {
	Token string `json:"token"`
}

// ValidateFlowArgs is the tool argument shape for validate_flow and
// lint_flow.
type ValidateFlowArgs struct {
	FlowPath string `json:"flow_path"`
}

// RegisterFlowTools builds the standard run/resume/validate/lint tool
// set against a single Engine/Registry/Store/Host, for a process that
// wants its default tool set.
func RegisterFlowTools(eng *engine.Engine, reg *registry.Registry, store checkpoint.Store, h *host.Host) []ToolRegistration {
	return []ToolRegistration{
		{
			Name:        "run_flow",
			Description: "Run a flow document to completion or its first pause point",
			Handler: func(ctx context.Context, args RunFlowArgs) (*mcp.ToolResponse, error) {
				flow, err := dsl.Load(args.FlowPath)
				if err != nil {
					return nil, err
				}
				reg.Register(flow)
				outcome, err := eng.Run(ctx, flow, args.Inputs, h)
				if err != nil {
					return nil, err
				}
				return outcomeResponse(outcome)
			},
		},
		{
			Name:        "resume_flow",
			Description: "Resume a paused flow run from its checkpoint token",
			Handler: func(ctx context.Context, args ResumeFlowArgs) (*mcp.ToolResponse, error) {
				ticket, err := store.Load(ctx, args.Token)
				if err != nil {
					return nil, err
				}
				outcome, err := eng.Resume(ctx, ticket, h)
				if err != nil {
					return nil, err
				}
				return outcomeResponse(outcome)
			},
		},
		{
			Name:        "validate_flow",
			Description: "Parse and structurally validate a flow document",
			Handler: func(ctx context.Context, args ValidateFlowArgs) (*mcp.ToolResponse, error) {
				flow, err := dsl.Parse(args.FlowPath)
				if err != nil {
					return nil, err
				}
				if err := dsl.Validate(flow); err != nil {
					return nil, err
				}
				return mcp.NewToolResponse(mcp.NewTextContent("valid")), nil
			},
		},
		{
			Name:        "lint_flow",
			Description: "Check a flow document for structural issues beyond schema validity",
			Handler: func(ctx context.Context, args ValidateFlowArgs) (*mcp.ToolResponse, error) {
				flow, err := dsl.Parse(args.FlowPath)
				if err != nil {
					return nil, err
				}
				errs := dsl.Lint(flow)
				if len(errs) == 0 {
					return mcp.NewToolResponse(mcp.NewTextContent("no lint issues")), nil
				}
				msg := ""
				for _, e := range errs {
					msg += e.Error() + "\n"
				}
				return mcp.NewToolResponse(mcp.NewTextContent(msg)), nil
			},
		},
	}
}

func outcomeResponse(outcome *engine.Outcome) (*mcp.ToolResponse, error) {
	if outcome.Ticket != nil {
		return mcp.NewToolResponse(mcp.NewTextContent("paused at step " + outcome.Ticket.StepID + ", resume token " + outcome.Ticket.Token)), nil
	}
	return mcp.NewToolResponse(mcp.NewTextContent("run complete")), nil
}
