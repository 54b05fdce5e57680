// Package google implements the Gemini generateContent API.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout = 120 * time.Second
)

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type apiRequest struct {
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type apiResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

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
	return models.ProviderGoogle
}

func (p *Provider) SendPrompt(ctx context.Context, req *models.PromptRequest) (*models.Completion, error) {
	if req.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	apiReq := &apiRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: req.User}}}},
	}
	if req.System != "" {
		apiReq.SystemInstruction = &content{Parts: []part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		apiReq.GenerationConfig = &generationConfig{MaxOutputTokens: req.MaxTokens}
	}

	payload, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", p.baseURL, url.PathEscape(req.Model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+url.QueryEscape(req.APIKey), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	// The key rides in the query string, so only the bare endpoint is logged.
	logging.Log("providers", "request", "provider", models.ProviderGoogle, "url", endpoint, "model", req.Model)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to %s: %w", endpoint, redactKey(err, req.APIKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logging.Log("providers", "response", "provider", models.ProviderGoogle, "status", resp.StatusCode, "bytes", len(body))

	var apiResp apiResponse
	decodeErr := json.Unmarshal(body, &apiResp)

	message := ""
	if decodeErr == nil && apiResp.Error != nil {
		message = apiResp.Error.Message
	}
	if err := provider.CheckStatus(string(models.ProviderGoogle), resp.StatusCode, message, body); err != nil {
		return nil, err
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", decodeErr)
	}

	var text strings.Builder
	if len(apiResp.Candidates) > 0 {
		for _, pt := range apiResp.Candidates[0].Content.Parts {
			text.WriteString(pt.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w: google", provider.ErrEmptyResponse)
	}

	return &models.Completion{
		Text:         text.String(),
		InputTokens:  apiResp.UsageMetadata.PromptTokenCount,
		OutputTokens: apiResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

// redactKey strips the API key from transport errors, which embed the URL.
func redactKey(err error, key string) error {
	if key == "" || !strings.Contains(err.Error(), url.QueryEscape(key)) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), url.QueryEscape(key), "[REDACTED]"))
}
