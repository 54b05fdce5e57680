package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	defaultVersion = "2023-06-01"
	defaultTimeout = 120 * time.Second
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Provider implements the Anthropic Messages API.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

func New(cfg *provider.Config) *Provider {
	baseURL := defaultBaseURL
	timeout := defaultTimeout
	if cfg != nil {
		if cfg.BaseURL != "" {
			baseURL = cfg.BaseURL
		}
		if cfg.TimeoutSec > 0 {
			timeout = time.Duration(cfg.TimeoutSec) * time.Second
		}
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() models.ProviderType {
	return models.ProviderAnthropic
}

func (p *Provider) SendPrompt(ctx context.Context, req *models.PromptRequest) (*models.Completion, error) {
	if req.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	payload, err := json.Marshal(&apiRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		System:    req.System,
		Messages:  []message{{Role: "user", Content: req.User}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("x-api-key", req.APIKey)
	httpReq.Header.Set("anthropic-version", defaultVersion)
	httpReq.Header.Set("content-type", "application/json")

	logging.Log("providers", "request", "provider", models.ProviderAnthropic, "url", url, "model", req.Model)
	logging.Trace("providers", "request body", "provider", models.ProviderAnthropic, "body", string(payload))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logging.Log("providers", "response", "provider", models.ProviderAnthropic, "status", resp.StatusCode, "bytes", len(body))

	var apiResp apiResponse
	decodeErr := json.Unmarshal(body, &apiResp)

	message := ""
	if decodeErr == nil && apiResp.Error != nil {
		message = apiResp.Error.Message
	}
	if err := provider.CheckStatus(string(models.ProviderAnthropic), resp.StatusCode, message, body); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w: anthropic", provider.ErrEmptyResponse)
	}

	return &models.Completion{
		Text:         text.String(),
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}
