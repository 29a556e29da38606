// Package main is the chatbridge entry point: it loads configuration,
// wires the session store, provider adapters and orchestrator together,
// and runs the interactive chat surface.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mpetrov/chatbridge/internal/config"
	"github.com/mpetrov/chatbridge/internal/conversation"
	"github.com/mpetrov/chatbridge/internal/dialogue"
	"github.com/mpetrov/chatbridge/internal/dispatch"
	"github.com/mpetrov/chatbridge/internal/provider"
)

func main() {
	os.Exit(runMain())
}

func runMain() int {
	configPath := flag.String("config", "chatbridge.toml", "path to the TOML config file")
	userID := flag.Int64("user", 1, "user key for this session")
	verbose := flag.Bool("verbose", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Configuration errors are fatal: the process must not proceed.
		fmt.Fprintf(os.Stderr, "chatbridge: %v\n", err)
		return 1
	}

	store := conversation.NewStore(
		conversation.NewFilePersistence(cfg.StateFile),
		conversation.Defaults{
			Provider:     provider.Primary,
			Model:        cfg.PrimaryModel,
			SystemPrompt: cfg.SystemPrompt,
			Temperature:  cfg.Temperature,
			MaxTokens:    cfg.MaxTokens,
		},
		cfg.MaxContextLength,
		conversation.WithLogger(logger),
	)

	factory := newAdapterFactory(cfg)
	models := dialogue.ModelDefaults{
		provider.Primary:   cfg.PrimaryModel,
		provider.Reasoning: cfg.ReasoningModel,
	}

	orch, err := dialogue.NewOrchestrator(store, factory, models, dialogue.WithLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "chatbridge: %v\n", err)
		return 1
	}

	r := newREPL(orch, dispatch.NewDispatcher(), store, *userID, cfg.RequestTimeout())
	if err := r.run(); err != nil {
		fmt.Fprintf(os.Stderr, "chatbridge: %v\n", err)
		return 1
	}
	return 0
}

// newAdapterFactory builds one adapter per provider up front; adapters are
// stateless between calls and safe to reuse.
func newAdapterFactory(cfg config.Config) dialogue.AdapterFactory {
	primary := provider.NewOpenAIAdapter(provider.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.RequestTimeout(),
	})
	reasoning := provider.NewAnthropicAdapter(provider.ClientConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Timeout: cfg.RequestTimeout(),
	})

	return func(p provider.Provider) provider.Adapter {
		if p == provider.Reasoning {
			return reasoning
		}
		return primary
	}
}
