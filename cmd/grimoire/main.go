// Command grimoire runs, resumes, validates, and lints flow documents
// from the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wyrdbound/grimoire/checkpoint"
	"github.com/wyrdbound/grimoire/config"
	"github.com/wyrdbound/grimoire/dsl"
	"github.com/wyrdbound/grimoire/engine"
	"github.com/wyrdbound/grimoire/event"
	"github.com/wyrdbound/grimoire/host"
	"github.com/wyrdbound/grimoire/logger"
	"github.com/wyrdbound/grimoire/registry"
	"github.com/wyrdbound/grimoire/telemetry"
)

var buildVersion = "dev"

var (
	configPath string
	debug      bool
	flowsDir   string
)

func main() {
	_ = godotenv.Load()

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{Use: "grimoire", Short: "Run and resume GRIMOIRE flows"}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigDir+"/config.json", "path to grimoire config JSON")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logs")
	rootCmd.PersistentFlags().StringVar(&flowsDir, "flows-dir", "", "path to flows directory (overrides config file)")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if debug {
			logger.SetMode("debug")
		}
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newResumeCmd(),
		newValidateCmd(),
		newLintCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// loadRuntimeConfig reads the config document at configPath. If
// config.LoadConfig fails for any reason (missing, unreadable, or invalid
// file), it falls back, without reporting the error, to a SQLite
// checkpoint store at config.DefaultSQLiteDSN and config.DefaultFlowsDir,
// so a `grimoire run` with no config file works out of the box.
func loadRuntimeConfig() *config.Config {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		cfg = &config.Config{
			Checkpoint: config.CheckpointConfig{Driver: "sqlite", DSN: config.DefaultSQLiteDSN},
			FlowsDir:   config.DefaultFlowsDir,
		}
	}
	if flowsDir != "" {
		cfg.FlowsDir = flowsDir
	}
	return cfg
}

func newCheckpointStore(cfg *config.Config) (checkpoint.Store, error) {
	switch cfg.Checkpoint.Driver {
	case "", "sqlite":
		dsn := cfg.Checkpoint.DSN
		if dsn == "" {
			dsn = config.DefaultSQLiteDSN
		}
		return checkpoint.NewSQLiteStore(dsn)
	case "postgres":
		return checkpoint.NewPostgresStore(cfg.Checkpoint.DSN)
	default:
		return nil, fmt.Errorf("unsupported checkpoint driver: %s", cfg.Checkpoint.Driver)
	}
}

// buildEngine initializes telemetry and wires a registry (loaded from
// cfg.FlowsDir) and a checkpoint store together into a ready-to-run
// Engine. The Host is built separately by buildHost.
func buildEngine(cfg *config.Config) (*engine.Engine, *registry.Registry, error) {
	telemetry.Init(cfg)

	reg := registry.New()
	if cfg.FlowsDir != "" {
		if err := reg.LoadDir(cfg.FlowsDir); err != nil {
			logger.Warn("failed to load flows dir %s: %v", cfg.FlowsDir, err)
		}
	}

	store, err := newCheckpointStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	return engine.New(reg, store), reg, nil
}

func buildHost(cfg *config.Config) (*host.Host, error) {
	h := engine.NewDefaultHost()
	h.Interaction = newStdioInteraction(os.Stdin, os.Stdout)

	bus, err := event.NewEventBusFromConfig(cfg.Event)
	if err != nil {
		return nil, err
	}
	h.Events = &event.BusSink{Bus: bus}
	return h, nil
}

func newRunCmd() *cobra.Command {
	var inputsPath string
	cmd := &cobra.Command{
		Use:   "run <flow-file>",
		Short: "Run a flow document to completion or its first pause point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := dsl.Load(args[0])
			if err != nil {
				return fmt.Errorf("load flow: %w", err)
			}

			inputs := map[string]any{}
			if inputsPath != "" {
				raw, err := os.ReadFile(inputsPath)
				if err != nil {
					return fmt.Errorf("read inputs: %w", err)
				}
				if err := json.Unmarshal(raw, &inputs); err != nil {
					return fmt.Errorf("parse inputs: %w", err)
				}
			}

			cfg := loadRuntimeConfig()
			eng, reg, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			reg.Register(flow)

			h, err := buildHost(cfg)
			if err != nil {
				return err
			}

			outcome, err := eng.Run(context.Background(), flow, inputs, h)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}
	cmd.Flags().StringVar(&inputsPath, "inputs", "", "path to a JSON file of flow inputs")
	return cmd
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <token>",
		Short: "Resume a paused flow run from its checkpoint token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadRuntimeConfig()
			eng, _, err := buildEngine(cfg)
			if err != nil {
				return err
			}
			store, err := newCheckpointStore(cfg)
			if err != nil {
				return err
			}
			ticket, err := store.Load(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("load checkpoint: %w", err)
			}

			h, err := buildHost(cfg)
			if err != nil {
				return err
			}

			outcome, err := eng.Resume(context.Background(), ticket, h)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <flow-file>",
		Short: "Parse and structurally validate a flow document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := dsl.Parse(args[0])
			if err != nil {
				return err
			}
			if err := dsl.Validate(flow); err != nil {
				return err
			}
			logger.User("%s: valid", args[0])
			return nil
		},
	}
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <flow-file>",
		Short: "Check a flow document for structural issues beyond schema validity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := dsl.Parse(args[0])
			if err != nil {
				return err
			}
			errs := dsl.Lint(flow)
			if len(errs) == 0 {
				logger.User("%s: no lint issues", args[0])
				return nil
			}
			for _, e := range errs {
				logger.User("%s: %v", args[0], e)
			}
			return fmt.Errorf("%d lint issue(s) found", len(errs))
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the grimoire version",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.User("grimoire %s", buildVersion)
			return nil
		},
	}
}

func printOutcome(outcome *engine.Outcome) error {
	if outcome.Ticket != nil {
		logger.User("paused at step %q — resume token: %s", outcome.Ticket.StepID, outcome.Ticket.Token)
		return nil
	}
	b, err := json.MarshalIndent(outcome.Outputs, "", "  ")
	if err != nil {
		return err
	}
	logger.User("%s", string(b))
	return nil
}
