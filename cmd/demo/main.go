package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/wolfman30/context-rot-monitor/internal/app/bootstrap"
	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
	"github.com/wolfman30/context-rot-monitor/internal/demo"
	"github.com/wolfman30/context-rot-monitor/internal/llm"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
	cfg := appconfig.Load()

	apiURL := flag.String("api", cfg.APIURL, "monitor API base URL")
	provider := flag.String("provider", cfg.SupervisorProvider, "LLM provider for the support agent (groq, gemini, bedrock)")
	flag.Parse()

	// Logs go to stderr so they do not interleave with the conversation.
	logger := logging.NewWithWriter(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := agentClient(ctx, cfg, *provider)
	if err != nil {
		logger.Error("failed to build agent model", "error", err)
		os.Exit(1)
	}
	if client == nil {
		fmt.Println("No LLM credentials configured; the agent will use a canned reply.")
	}

	fmt.Println("INTERACTIVE DEMO - Context Rot Monitor")
	runner := &demo.Runner{
		API:    demo.NewAPIClient(*apiURL, nil),
		Agent:  demo.NewAgent(client, cfg.DemoModelID, logger),
		In:     os.Stdin,
		Out:    os.Stdout,
		Logger: logger,
	}
	if _, err := runner.Run(ctx); err != nil {
		logger.Error("demo failed", "error", err)
		os.Exit(1)
	}
}

// agentClient returns nil when the provider has no credentials configured.
func agentClient(ctx context.Context, cfg *appconfig.Config, provider string) (llm.Client, error) {
	client, err := bootstrap.BuildLLMClient(ctx, cfg, provider, cfg.DemoModelID, bootstrap.LoadAWSConfig)
	if errors.Is(err, bootstrap.ErrProviderUnavailable) {
		return nil, nil
	}
	return client, err
}
