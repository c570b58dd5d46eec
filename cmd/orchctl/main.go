// Package main provides the CLI entry point for orchctl, the
// orchestration core's reference command-line harness.
//
// orchctl wires a YAML config (internal/orchconfig) to the manager
// facade (internal/orchmanager) backed by a JSON file store
// (internal/orchstorage), and exposes world/agent/chat CRUD plus a
// status command summarizing the active configuration.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yysun/agent-world-sub001/internal/chathousekeeping"
	"github.com/yysun/agent-world-sub001/internal/metrics"
	"github.com/yysun/agent-world-sub001/internal/orchconfig"
	"github.com/yysun/agent-world-sub001/internal/orchmanager"
	"github.com/yysun/agent-world-sub001/internal/orchmodel"
	"github.com/yysun/agent-world-sub001/internal/orchstorage"
	"github.com/yysun/agent-world-sub001/internal/telemetry"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "orchctl",
		Short:        "orchctl - agent orchestration core CLI",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "orchcore.yaml", "Path to YAML configuration file")

	rootCmd.AddCommand(
		buildWorldCmd(&configPath),
		buildAgentCmd(&configPath),
		buildChatCmd(&configPath),
		buildStatusCmd(&configPath),
		buildHousekeepingCmd(&configPath),
	)
	return rootCmd
}

// setup loads config, wires the logger and metrics, and returns a
// Manager backed by a JSON file store under cfg.Worlds.StorageDir.
func setup(configPath string) (*orchconfig.Config, *orchmanager.Manager, error) {
	cfg, err := orchconfig.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := orchconfig.NewLogger(cfg.Logging)
	slog.SetDefault(logger)

	if cfg.Metrics.Enabled {
		metrics.New()
	}

	store, err := orchstorage.Open(cfg.Worlds.StorageDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	return cfg, orchmanager.New(store), nil
}

// setupTracer builds the OpenTelemetry tracer a dispatch.Loop uses for
// per-turn/per-tool spans (wired via dispatch.Loop.SetTracer by
// whatever constructs the Loop). Returns a no-op shutdown when
// telemetry is disabled.
func setupTracer(cfg orchconfig.TelemetryConfig) (*telemetry.Tracer, func(context.Context) error) {
	endpoint := ""
	if cfg.Enabled {
		endpoint = cfg.Endpoint
	}
	return telemetry.NewTracer(telemetry.Config{
		ServiceName:  "orchctl",
		Environment:  cfg.Environment,
		Endpoint:     endpoint,
		SamplingRate: cfg.SampleRate,
		Insecure:     cfg.Insecure,
	})
}

func buildWorldCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Manage worlds",
	}
	cmd.AddCommand(buildWorldCreateCmd(configPath), buildWorldListCmd(configPath), buildWorldDeleteCmd(configPath))
	return cmd
}

func buildWorldCreateCmd(configPath *string) *cobra.Command {
	var name, description string
	var turnLimit int
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name = args[0]
			cfg, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			if turnLimit == 0 {
				turnLimit = cfg.Worlds.DefaultTurnLimit
			}
			world := orchmodel.World{
				ID:          uuid.NewString(),
				Name:        name,
				Description: description,
				TurnLimit:   turnLimit,
			}
			if err := mgr.CreateWorld(world); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created world %s (%s)\n", world.Name, world.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "World description")
	cmd.Flags().IntVar(&turnLimit, "turn-limit", 0, "Per-agent LLM-call budget between human messages (default: config default)")
	return cmd
}

func buildWorldListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List worlds",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			worlds, err := mgr.ListWorlds()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(worlds) == 0 {
				fmt.Fprintln(out, "No worlds found.")
				return nil
			}
			for _, w := range worlds {
				fmt.Fprintf(out, "  %s  %s  (turn limit %d)\n", w.ID, w.Name, w.TurnLimit)
			}
			return nil
		},
	}
}

func buildWorldDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [world-id]",
		Short: "Delete a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			if err := mgr.DeleteWorld(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted world %s\n", args[0])
			return nil
		},
	}
}

func buildAgentCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Manage agents within a world",
	}
	cmd.AddCommand(buildAgentCreateCmd(configPath), buildAgentListCmd(configPath), buildAgentDeleteCmd(configPath))
	return cmd
}

func buildAgentCreateCmd(configPath *string) *cobra.Command {
	var worldID, name, provider, model, systemPrompt string
	cmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new agent in a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name = args[0]
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			agent, err := mgr.CreateAgent(worldID, orchmanager.CreateAgentParams{
				Name:         name,
				Provider:     orchmodel.Provider(provider),
				Model:        model,
				SystemPrompt: systemPrompt,
				AutoReply:    true,
			}, orchmanager.CreateAgentOptions{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (@%s)\n", agent.Name, agent.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World ID (required)")
	cmd.Flags().StringVar(&provider, "provider", "openai", "LLM provider (openai, anthropic, ...)")
	cmd.Flags().StringVar(&model, "model", "", "Model name")
	cmd.Flags().StringVar(&systemPrompt, "system-prompt", "", "System prompt")
	cmd.MarkFlagRequired("world")
	return cmd
}

func buildAgentListCmd(configPath *string) *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents in a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			agents, err := mgr.ListAgents(worldID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents found.")
				return nil
			}
			for _, a := range agents {
				fmt.Fprintf(out, "  @%s  %s  (%s/%s)\n", a.ID, a.Name, a.Provider, a.Model)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World ID (required)")
	cmd.MarkFlagRequired("world")
	return cmd
}

func buildAgentDeleteCmd(configPath *string) *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "delete [agent-id]",
		Short: "Delete an agent from a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			if err := mgr.DeleteAgent(worldID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted agent @%s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World ID (required)")
	cmd.MarkFlagRequired("world")
	return cmd
}

func buildChatCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Manage chats within a world",
	}
	cmd.AddCommand(buildChatNewCmd(configPath), buildChatListCmd(configPath), buildChatDeleteCmd(configPath))
	return cmd
}

func buildChatNewCmd(configPath *string) *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new (untitled) chat in a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			chat := orchmodel.Chat{ID: uuid.NewString()}
			if err := mgr.NewChat(worldID, chat); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created chat %s\n", chat.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World ID (required)")
	cmd.MarkFlagRequired("world")
	return cmd
}

func buildChatListCmd(configPath *string) *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List chats in a world",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			chats, err := mgr.ListChats(worldID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(chats) == 0 {
				fmt.Fprintln(out, "No chats found.")
				return nil
			}
			for _, c := range chats {
				title := c.Name
				if c.Untitled {
					title = "(untitled)"
				}
				fmt.Fprintf(out, "  %s  %s\n", c.ID, title)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World ID (required)")
	cmd.MarkFlagRequired("world")
	return cmd
}

func buildChatDeleteCmd(configPath *string) *cobra.Command {
	var worldID string
	cmd := &cobra.Command{
		Use:   "delete [chat-id]",
		Short: "Delete a chat from a world",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			if err := mgr.DeleteChat(worldID, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted chat %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&worldID, "world", "", "World ID (required)")
	cmd.MarkFlagRequired("world")
	return cmd
}

func buildStatusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show storage and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			worlds, err := mgr.ListWorlds()
			if err != nil {
				return err
			}

			_, shutdown := setupTracer(cfg.Telemetry)
			defer shutdown(cmd.Context())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Storage dir:  %s\n", cfg.Worlds.StorageDir)
			fmt.Fprintf(out, "Worlds:       %d\n", len(worlds))
			fmt.Fprintf(out, "Default turn limit: %d\n", cfg.Worlds.DefaultTurnLimit)
			fmt.Fprintf(out, "Metrics:      enabled=%t addr=%s\n", cfg.Metrics.Enabled, cfg.Metrics.Addr)
			fmt.Fprintf(out, "Telemetry:    enabled=%t endpoint=%s\n", cfg.Telemetry.Enabled, cfg.Telemetry.Endpoint)
			fmt.Fprintf(out, "Housekeeping: schedule=%s max_chat_age=%s\n", cfg.Housekeeping.Schedule, cfg.Housekeeping.MaxChatAge)
			return nil
		},
	}
}

func buildHousekeepingCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "housekeeping",
		Short: "Sweep stale untitled chats",
	}
	cmd.AddCommand(buildHousekeepingRunCmd(configPath), buildHousekeepingServeCmd(configPath))
	return cmd
}

func buildHousekeepingRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one housekeeping sweep across every world and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			hk, err := chathousekeeping.New(mgr, cfg.Housekeeping.Schedule, cfg.Housekeeping.MaxChatAge, slog.Default())
			if err != nil {
				return err
			}
			worlds, err := mgr.ListWorlds()
			if err != nil {
				return err
			}
			total := 0
			for _, w := range worlds {
				n, err := hk.SweepWorld(w.ID)
				if err != nil {
					return err
				}
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Swept %d stale untitled chat(s) across %d world(s)\n", total, len(worlds))
			return nil
		},
	}
}

func buildHousekeepingServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run housekeeping sweeps on their configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, mgr, err := setup(*configPath)
			if err != nil {
				return err
			}
			hk, err := chathousekeeping.New(mgr, cfg.Housekeeping.Schedule, cfg.Housekeeping.MaxChatAge, slog.Default())
			if err != nil {
				return err
			}
			hk.Start()
			defer hk.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Housekeeping running on schedule %q; press Ctrl+C to stop\n", cfg.Housekeeping.Schedule)
			<-cmd.Context().Done()
			return nil
		},
	}
}
