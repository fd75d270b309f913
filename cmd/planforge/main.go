package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesprintlab/planforge/agents"
	"github.com/codesprintlab/planforge/framework"
	"github.com/codesprintlab/planforge/internal/runtime"
	"github.com/codesprintlab/planforge/llm"
	"github.com/codesprintlab/planforge/pipeline"
	"github.com/codesprintlab/planforge/search"
	"github.com/codesprintlab/planforge/server"
)

var (
	flagModel    string
	flagEndpoint string
	flagConfig   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "planforge",
		Short: "Project plan generation backend",
	}
	root.PersistentFlags().StringVar(&flagModel, "model", "", "Ollama model (overrides env/config)")
	root.PersistentFlags().StringVar(&flagEndpoint, "ollama", "", "Ollama endpoint (overrides env/config)")
	root.PersistentFlags().StringVar(&flagConfig, "config", "planforge.yaml", "Optional YAML config file")

	root.AddCommand(newServeCmd(), newGenerateCmd())
	return root
}

func loadConfig() (runtime.Config, error) {
	cfg := runtime.DefaultConfig()
	cfg.LoadEnv()
	if err := cfg.LoadFile(flagConfig); err != nil {
		return cfg, err
	}
	if flagModel != "" {
		cfg.OllamaModel = flagModel
	}
	if flagEndpoint != "" {
		cfg.OllamaEndpoint = flagEndpoint
	}
	if err := cfg.Normalize(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildGenerator wires transport, telemetry, executor, and the optional
// search collaborator from the resolved configuration.
func buildGenerator(cfg runtime.Config, logger *log.Logger) (*pipeline.Generator, func(), error) {
	var sinks []framework.Telemetry
	cleanup := func() {}
	if cfg.TelemetryPath != "" {
		fileSink, err := framework.NewJSONFileTelemetry(cfg.TelemetryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("telemetry init: %w", err)
		}
		sinks = append(sinks, fileSink)
		cleanup = func() { _ = fileSink.Close() }
	}
	if cfg.DebugLLM {
		sinks = append(sinks, framework.LoggerTelemetry{Logger: logger})
	}
	var telemetry framework.Telemetry
	if len(sinks) > 0 {
		telemetry = framework.MultiplexTelemetry{Sinks: sinks}
	}

	client := llm.NewClient(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.RequestTimeout)
	client.SetDebugLogging(cfg.DebugLLM)
	if err := client.Probe(context.Background(), llm.ProbeOptions{
		Retries:   cfg.ProbeRetries,
		Backoff:   cfg.ProbeBackoff,
		Telemetry: telemetry,
		Logger:    logger,
	}); err != nil {
		// The model host may still come up later; generation degrades
		// gracefully in the meantime.
		logger.Printf("continuing without a confirmed model endpoint: %v", err)
	}

	executor := &agents.Executor{
		Model:          llm.NewInstrumentedModel(client, telemetry, cfg.DebugLLM),
		Telemetry:      telemetry,
		Logger:         logger,
		PrimaryTimeout: cfg.PrimaryTimeout,
		RetryTimeout:   cfg.RetryTimeout,
		MinResponseLen: cfg.MinResponseLen,
		Options: &framework.LLMOptions{
			Model:       cfg.OllamaModel,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		},
	}

	generator := &pipeline.Generator{
		Runner:         executor,
		Telemetry:      telemetry,
		Logger:         logger,
		OverallTimeout: cfg.OverallTimeout,
	}
	if cfg.ExaAPIKey != "" {
		searcher, err := search.NewClient(cfg.ExaAPIKey, cfg.ExaEndpoint)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("search init: %w", err)
		}
		generator.Search = searcher
	}
	return generator, cleanup, nil
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the project generation HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}
			logger := log.Default()
			generator, cleanup, err := buildGenerator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			api := &server.APIServer{
				Generator: generator,
				Logger:    logger,
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Printf("Starting project generation API on %s (model=%s)", cfg.ServerAddr, cfg.OllamaModel)
			err = api.ServeContext(ctx, cfg.ServerAddr)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides env/config)")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	var areasFlag string
	var techStack string
	var useSearch bool
	cmd := &cobra.Command{
		Use:   "generate [description]",
		Short: "Run the generation pipeline once and print the plan as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "", log.LstdFlags)
			generator, cleanup, err := buildGenerator(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			var areas []string
			for _, area := range strings.Split(areasFlag, ",") {
				if area = strings.TrimSpace(area); area != "" {
					areas = append(areas, area)
				}
			}
			plan, err := generator.Run(cmd.Context(), pipeline.Request{
				Areas:       areas,
				TechStack:   techStack,
				Description: args[0],
				UseSearch:   useSearch,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(plan)
		},
	}
	cmd.Flags().StringVar(&areasFlag, "areas", "Web", "Comma-separated target areas")
	cmd.Flags().StringVar(&techStack, "tech", "", "Technology stack hint")
	cmd.Flags().BoolVar(&useSearch, "search", false, "Enrich the brief with external search results")
	return cmd
}
