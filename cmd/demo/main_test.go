package main

import (
	"context"
	"testing"

	appconfig "github.com/wolfman30/context-rot-monitor/internal/config"
)

func TestAgentClientWithoutCredentials(t *testing.T) {
	client, err := agentClient(context.Background(), &appconfig.Config{}, appconfig.ProviderGroq)
	if err != nil || client != nil {
		t.Fatalf("expected nil client and no error, got %v, %v", client, err)
	}
}

func TestAgentClientUnknownProvider(t *testing.T) {
	if _, err := agentClient(context.Background(), &appconfig.Config{}, "openai"); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}
