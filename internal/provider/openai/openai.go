package openai

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
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_completion_tokens,omitempty"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    any    `json:"code"`
}

// Provider speaks the chat completions protocol. It also serves
// OpenAI-compatible gateways through NewCompatible.
type Provider struct {
	name       models.ProviderType
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

func New(cfg *provider.Config) *Provider {
	return NewCompatible(models.ProviderOpenAI, defaultBaseURL, cfg, nil)
}

// NewCompatible builds a chat completions client for another provider tag.
// cfg.BaseURL, when set, overrides baseURL.
func NewCompatible(name models.ProviderType, baseURL string, cfg *provider.Config, headers map[string]string) *Provider {
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
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (p *Provider) Name() models.ProviderType {
	return p.name
}

func (p *Provider) SendPrompt(ctx context.Context, req *models.PromptRequest) (*models.Completion, error) {
	if req.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	apiReq := &apiRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
	}
	if req.System != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "system", Content: req.System})
	}
	apiReq.Messages = append(apiReq.Messages, chatMessage{Role: "user", Content: req.User})

	jsonData, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}

	logging.Log("providers", "request", "provider", p.name, "method", http.MethodPost, "url", url, "model", req.Model)
	logging.Trace("providers", "request body", "provider", p.name, "body", string(jsonData))

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logging.Log("providers", "response", "provider", p.name, "status", resp.StatusCode, "bytes", len(body))
	logging.Trace("providers", "response body", "provider", p.name, "body", logging.Truncate(string(body), 4096))

	var apiResp apiResponse
	decodeErr := json.Unmarshal(body, &apiResp)

	message := ""
	if decodeErr == nil && apiResp.Error != nil {
		message = apiResp.Error.Message
	}
	if err := provider.CheckStatus(string(p.name), resp.StatusCode, message, body); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if apiResp.Error != nil {
		return nil, fmt.Errorf("%w: %s", provider.ErrRequestFailed, apiResp.Error.Message)
	}

	if len(apiResp.Choices) == 0 || strings.TrimSpace(apiResp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%w: %s", provider.ErrEmptyResponse, p.name)
	}

	return &models.Completion{
		Text:         apiResp.Choices[0].Message.Content,
		InputTokens:  apiResp.Usage.PromptTokens,
		OutputTokens: apiResp.Usage.CompletionTokens,
	}, nil
}
