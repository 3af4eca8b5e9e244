package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultGroqBaseURL = "https://api.groq.com"
	DefaultGroqModel   = "llama-3.1-8b-instant"

	maxGroqResponseBytes = 1 << 20
)

// GroqClient talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	apiKey       string
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

type GroqOption func(*GroqClient)

// WithGroqBaseURL points the client at another OpenAI-compatible host.
func WithGroqBaseURL(baseURL string) GroqOption {
	return func(c *GroqClient) {
		if strings.TrimSpace(baseURL) != "" {
			c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		}
	}
}

func WithGroqHTTPClient(hc *http.Client) GroqOption {
	return func(c *GroqClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewGroqClient(apiKey, defaultModel string, opts ...GroqOption) (*GroqClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: groq api key is required")
	}
	if strings.TrimSpace(defaultModel) == "" {
		defaultModel = DefaultGroqModel
	}
	c := &GroqClient{
		apiKey:       strings.TrimSpace(apiKey),
		baseURL:      DefaultGroqBaseURL,
		defaultModel: defaultModel,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqResponseFormat struct {
	Type string `json:"type"`
}

type groqChatRequest struct {
	Model          string              `json:"model"`
	Messages       []groqMessage       `json:"messages"`
	MaxTokens      int32               `json:"max_tokens,omitempty"`
	Temperature    *float32            `json:"temperature,omitempty"`
	TopP           *float32            `json:"top_p,omitempty"`
	ResponseFormat *groqResponseFormat `json:"response_format,omitempty"`
}

type groqChatResponse struct {
	Choices []struct {
		Message      groqMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int32 `json:"prompt_tokens"`
		CompletionTokens int32 `json:"completion_tokens"`
		TotalTokens      int32 `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *GroqClient) Complete(ctx context.Context, req Request) (Response, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.defaultModel
	}

	body := groqChatRequest{Model: model, MaxTokens: req.MaxTokens}
	if system := strings.TrimSpace(strings.Join(req.System, "\n\n")); system != "" {
		body.Messages = append(body.Messages, groqMessage{Role: RoleSystem, Content: system})
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return Response{}, fmt.Errorf("llm: unsupported role %q", msg.Role)
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		body.Messages = append(body.Messages, groqMessage{Role: msg.Role, Content: msg.Content})
	}
	if len(body.Messages) == 0 {
		return Response{}, errors.New("llm: groq request has no messages")
	}
	if req.Temperature >= 0 {
		t := req.Temperature
		body.Temperature = &t
	}
	if req.TopP > 0 {
		p := req.TopP
		body.TopP = &p
	}
	if req.JSONMode {
		body.ResponseFormat = &groqResponseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("llm: marshal groq request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/openai/v1/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("llm: build groq request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("llm: groq request: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, maxGroqResponseBytes))
	if err != nil {
		return Response{}, fmt.Errorf("llm: read groq response: %w", err)
	}

	var decoded groqChatResponse
	decodeErr := json.Unmarshal(raw, &decoded)
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && decoded.Error != nil && decoded.Error.Message != "" {
			msg = decoded.Error.Message
		}
		return Response{}, fmt.Errorf("llm: groq status %d: %s", httpResp.StatusCode, msg)
	}
	if decodeErr != nil {
		return Response{}, fmt.Errorf("llm: decode groq response: %w", decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return Response{}, errors.New("llm: groq returned no choices")
	}

	choice := decoded.Choices[0]
	return Response{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: choice.FinishReason,
		Usage: TokenUsage{
			InputTokens:  decoded.Usage.PromptTokens,
			OutputTokens: decoded.Usage.CompletionTokens,
			TotalTokens:  decoded.Usage.TotalTokens,
		},
	}, nil
}
