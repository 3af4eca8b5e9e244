package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
	"github.com/wolfman30/context-rot-monitor/internal/llm"
	"github.com/wolfman30/context-rot-monitor/internal/supervisor"
	"github.com/wolfman30/context-rot-monitor/pkg/logging"
)

// ErrProviderUnavailable means a provider is known but lacks credentials or a model.
var ErrProviderUnavailable = errors.New("bootstrap: llm provider unavailable")

// AWSConfigLoader loads SDK configuration for Bedrock.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// BuildLLMClient builds a chat client for provider. An empty modelID uses the
// provider's configured default.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, provider, modelID string, loadAWS AWSConfigLoader) (llm.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	modelID = strings.TrimSpace(modelID)
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case appconfig.ProviderGroq:
		if strings.TrimSpace(cfg.GroqAPIKey) == "" {
			return nil, fmt.Errorf("%w: GROQ_API_KEY not set", ErrProviderUnavailable)
		}
		return llm.NewGroqClient(cfg.GroqAPIKey, modelID, llm.WithGroqBaseURL(cfg.GroqBaseURL))
	case appconfig.ProviderGemini:
		if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
			return nil, fmt.Errorf("%w: GEMINI_API_KEY not set", ErrProviderUnavailable)
		}
		if modelID == "" {
			modelID = cfg.GeminiModelID
		}
		return llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, modelID)
	case appconfig.ProviderBedrock:
		if modelID == "" {
			modelID = strings.TrimSpace(cfg.BedrockModelID)
		}
		if modelID == "" {
			return nil, fmt.Errorf("%w: BEDROCK_MODEL_ID not set", ErrProviderUnavailable)
		}
		if loadAWS == nil {
			return nil, fmt.Errorf("bootstrap: aws config loader is required for bedrock")
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg), modelID), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown llm provider %q", provider)
	}
}

// BuildSupervisor wires the drift analyst. Without a usable provider the
// heuristic analyst is returned so drifting verdicts are still explained.
// The returned label names what is serving analyses.
func BuildSupervisor(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (supervisor.Analyst, string, error) {
	if cfg == nil {
		return nil, "", fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	heuristic := supervisor.HeuristicAnalyst{Threshold: cfg.SupervisorHeuristicThreshold}
	if !cfg.SupervisorEnabled {
		logger.Info("supervisor disabled; using heuristic analysis")
		return heuristic, "heuristic", nil
	}

	primary, err := BuildLLMClient(ctx, cfg, cfg.SupervisorProvider, cfg.SupervisorModelID, loadAWS)
	if errors.Is(err, ErrProviderUnavailable) {
		logger.Warn("supervisor provider unavailable; using heuristic analysis", "provider", cfg.SupervisorProvider, "error", err.Error())
		return heuristic, "heuristic", nil
	}
	if err != nil {
		return nil, "", err
	}
	label := cfg.SupervisorProvider

	client := primary
	if fb := cfg.SupervisorFallbackProvider; fb != "" && fb != cfg.SupervisorProvider {
		fallback, err := BuildLLMClient(ctx, cfg, fb, "", loadAWS)
		if err != nil {
			logger.Warn("supervisor fallback provider unavailable", "provider", fb, "error", err.Error())
		} else {
			client = llm.NewFallbackClient(primary, fallback, logger)
			label += "+" + fb
		}
	}

	analyst := supervisor.NewLLMSupervisor(client, supervisor.Config{
		Timeout:            cfg.SupervisorTimeout,
		DriftThreshold:     cfg.DriftSimilarityThreshold,
		HeuristicThreshold: cfg.SupervisorHeuristicThreshold,
	}, logger)
	logger.Info("supervisor enabled", "provider", label)
	return analyst, label, nil
}
