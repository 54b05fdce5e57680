package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

func newTestRequest() *models.PromptRequest {
	req := models.NewPromptRequest("claude-sonnet-4-5", "You are a critic.", "Review this.")
	req.APIKey = "ak-test"
	return req
}

func TestProvider_SendPrompt(t *testing.T) {
	var gotReq apiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "ak-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != defaultVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "Looks "}, {"type": "tool_use"}, {"type": "text", "text": "good."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 20, "output_tokens": 4}
		}`))
	}))
	defer server.Close()

	c, err := New(&provider.Config{BaseURL: server.URL}).SendPrompt(context.Background(), newTestRequest())
	if err != nil {
		t.Fatalf("SendPrompt() error = %v", err)
	}

	if gotReq.System != "You are a critic." {
		t.Errorf("system = %q", gotReq.System)
	}
	if gotReq.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d", gotReq.MaxTokens)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", gotReq.Messages)
	}
	if c.Text != "Looks good." || c.InputTokens != 20 || c.OutputTokens != 4 {
		t.Errorf("completion = %+v", c)
	}
}

func TestProvider_SendPrompt_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`, provider.ErrUnauthorized},
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`, provider.ErrUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, provider.ErrRateLimited},
		{"empty content", http.StatusOK, `{"content":[]}`, provider.ErrEmptyResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := New(&provider.Config{BaseURL: server.URL}).SendPrompt(context.Background(), newTestRequest())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SendPrompt() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProvider_Defaults(t *testing.T) {
	p := New(nil)
	if p.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %q", p.baseURL)
	}
	if p.Name() != models.ProviderAnthropic {
		t.Errorf("Name() = %v", p.Name())
	}

	req := newTestRequest()
	req.APIKey = ""
	if _, err := p.SendPrompt(context.Background(), req); !errors.Is(err, provider.ErrAPIKeyRequired) {
		t.Errorf("SendPrompt() error = %v, want ErrAPIKeyRequired", err)
	}
}
