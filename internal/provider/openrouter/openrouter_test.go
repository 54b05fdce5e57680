package openrouter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

func TestNew_SendsAttributionHeaders(t *testing.T) {
	var referer, title, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referer = r.Header.Get("HTTP-Referer")
		title = r.Header.Get("X-Title")
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"routed"}}],"usage":{"prompt_tokens":4,"completion_tokens":1}}`))
	}))
	defer server.Close()

	p := New(&provider.Config{BaseURL: server.URL})
	if p.Name() != models.ProviderOpenRouter {
		t.Errorf("Name() = %v", p.Name())
	}

	req := models.NewPromptRequest("deepseek/deepseek-chat", "", "hello")
	req.APIKey = "or-key"
	c, err := p.SendPrompt(context.Background(), req)
	if err != nil {
		t.Fatalf("SendPrompt() error = %v", err)
	}
	if c.Text != "routed" {
		t.Errorf("Text = %q", c.Text)
	}
	if referer != appReferer || title != appTitle {
		t.Errorf("headers = %q / %q", referer, title)
	}
	if path != "/chat/completions" {
		t.Errorf("path = %q", path)
	}
}
