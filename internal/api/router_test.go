package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dschwags/Prompt-Lab-sub000/internal/cost"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

type stubProvider struct {
	name models.ProviderType

	mu    sync.Mutex
	reply func(req *models.PromptRequest) (*models.Completion, error)
}

func (p *stubProvider) Name() models.ProviderType {
	return p.name
}

func (p *stubProvider) SendPrompt(_ context.Context, req *models.PromptRequest) (*models.Completion, error) {
	p.mu.Lock()
	reply := p.reply
	p.mu.Unlock()
	if reply != nil {
		return reply(req)
	}
	return &models.Completion{Text: "reply from " + req.Model, InputTokens: 10, OutputTokens: 5}, nil
}

func (p *stubProvider) setReply(fn func(req *models.PromptRequest) (*models.Completion, error)) {
	p.mu.Lock()
	p.reply = fn
	p.mu.Unlock()
}

type staticKeys struct{}

func (staticKeys) Lookup(p models.ProviderType) string {
	return "key-" + string(p)
}

type testServer struct {
	handler   http.Handler
	engine    *workshop.Engine
	anthropic *stubProvider
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	registry := models.NewModelRegistry()
	_ = registry.Register(&models.ModelInfo{ID: "alpha", DisplayName: "Alpha", Provider: models.ProviderAnthropic, InputPerMTok: 1, OutputPerMTok: 1})
	_ = registry.Register(&models.ModelInfo{ID: "beta", DisplayName: "Beta", Provider: models.ProviderOpenAI})
	_ = registry.Register(&models.ModelInfo{ID: "gamma", DisplayName: "Gamma", Provider: models.ProviderGoogle})

	factory := provider.NewFactory(registry)
	ts := &testServer{}
	for _, p := range models.ValidProviders() {
		sp := &stubProvider{name: p}
		if p == models.ProviderAnthropic {
			ts.anthropic = sp
		}
		factory.Register(sp)
	}

	mgr := session.NewManager(session.NewMemoryStore())
	exec := workshop.NewExecutor(registry, factory, cost.NewTable(registry), staticKeys{}, workshop.ExecutorOptions{})
	ts.engine = workshop.NewEngine(exec, mgr)
	ts.handler = NewRouter(Options{
		Engine:         ts.engine,
		Synthesizer:    workshop.NewSynthesizer(exec, 0),
		Registry:       registry,
		SynthesisModel: "alpha",
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) start(t *testing.T) *session.Session {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/session", StartRequest{Models: []string{"alpha", "beta"}, User: "write a haiku"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /session status = %d, body = %s", rec.Code, rec.Body)
	}
	return decodeSession(t, rec)
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) *session.Session {
	t.Helper()
	var s session.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &s); err != nil {
		t.Fatalf("Unmarshal() error = %v, body = %s", err, rec.Body)
	}
	return &s
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("Unmarshal() error = %v, body = %s", err, rec.Body)
	}
	return e.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("GET /health = %d %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
}

func TestModels(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/models", nil)

	var got []ModelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got) != 3 || got[0].ID != "alpha" || got[0].Provider != "anthropic" {
		t.Errorf("GET /models = %+v", got)
	}
}

func TestSession_NoneYet(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/session"},
		{http.MethodDelete, "/session"},
		{http.MethodGet, "/export"},
		{http.MethodPost, "/rounds"},
		{http.MethodPost, "/synthesize"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := ts.do(t, tc.method, tc.path, nil)
			if rec.Code != http.StatusNotFound {
				t.Errorf("status = %d, want 404 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestStart(t *testing.T) {
	ts := newTestServer(t)
	s := ts.start(t)

	if len(s.Iterations) != 1 || len(s.Iterations[0].Rounds) != 1 {
		t.Fatalf("session shape = %+v", s.Iterations)
	}
	if got := len(s.LatestRound().Responses); got != 2 {
		t.Errorf("responses = %d, want 2", got)
	}

	rec := ts.do(t, http.MethodGet, "/session", nil)
	if rec.Code != http.StatusOK || decodeSession(t, rec).ID != s.ID {
		t.Errorf("GET /session = %d %s", rec.Code, rec.Body)
	}
}

func TestStart_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body any
		want error
	}{
		{"one model", StartRequest{Models: []string{"alpha"}, User: "x"}, workshop.ErrNotEnoughModels},
		{"empty prompt", StartRequest{Models: []string{"alpha", "beta"}, User: " "}, workshop.ErrEmptyPrompt},
		{"duplicate", StartRequest{Models: []string{"alpha", "alpha"}, User: "x"}, workshop.ErrDuplicateModel},
		{"unknown", StartRequest{Models: []string{"alpha", "zeta"}, User: "x"}, workshop.ErrUnknownModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, "/session", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if msg := errorBody(t, rec); !strings.Contains(msg, tt.want.Error()) {
				t.Errorf("error = %q, want %q", msg, tt.want)
			}
		})
	}
}

func TestStart_UnknownField(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/session", strings.NewReader(`{"modelz": ["a"]}`))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWorkflow(t *testing.T) {
	ts := newTestServer(t)
	s := ts.start(t)
	winner := s.LatestRound().Responses[1]

	rec := ts.do(t, http.MethodPost, "/winner", WinnerRequest{ResponseID: winner.ID[:8]})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /winner = %d %s", rec.Code, rec.Body)
	}
	if w := decodeSession(t, rec).LatestRound().Winner(); w == nil || w.ID != winner.ID {
		t.Error("winner not marked")
	}

	rec = ts.do(t, http.MethodPost, "/feedback", FeedbackRequest{ResponseID: winner.ID, Relevance: 1, Tone: -1})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /feedback = %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/lock", LockRequest{ModelID: "beta"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /lock = %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/rounds", PivotRequest{Pivot: "shorter"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /rounds = %d %s", rec.Code, rec.Body)
	}
	s = decodeSession(t, rec)
	last := s.LatestRound()
	if last.Number != 2 || len(last.Responses) != 1 || last.Responses[0].ModelID != "beta" {
		t.Errorf("locked round = %+v", last)
	}

	rec = ts.do(t, http.MethodPost, "/lock", LockRequest{ModelID: "alpha"})
	if rec.Code != http.StatusBadRequest || !strings.Contains(errorBody(t, rec), workshop.ErrAlreadyLocked.Error()) {
		t.Errorf("second lock = %d %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/checkpoint", PivotRequest{Pivot: "fresh angle"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /checkpoint = %d %s", rec.Code, rec.Body)
	}
	s = decodeSession(t, rec)
	if len(s.Iterations) != 2 || s.CurrentIterationIndex != 1 {
		t.Errorf("iterations = %d, current = %d", len(s.Iterations), s.CurrentIterationIndex)
	}

	rec = ts.do(t, http.MethodGet, "/export", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/markdown") {
		t.Fatalf("GET /export = %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "## Iteration 2") {
		t.Errorf("export missing iteration 2:\n%s", rec.Body)
	}

	rec = ts.do(t, http.MethodDelete, "/session", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("DELETE /session = %d", rec.Code)
	}
	if ts.engine.Snapshot() != nil {
		t.Error("session survived reset")
	}
}

func TestWinner_UnknownResponse(t *testing.T) {
	ts := newTestServer(t)
	ts.start(t)

	rec := ts.do(t, http.MethodPost, "/winner", WinnerRequest{ResponseID: "nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestFeedback_Invalid(t *testing.T) {
	ts := newTestServer(t)
	s := ts.start(t)

	rec := ts.do(t, http.MethodPost, "/feedback", FeedbackRequest{ResponseID: s.LatestRound().Responses[0].ID, Relevance: 3})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestReplace(t *testing.T) {
	ts := newTestServer(t)
	s := ts.start(t)

	rec := ts.do(t, http.MethodPost, "/replace", ReplaceRequest{ResponseID: s.LatestRound().Responses[0].ID, ModelID: "gamma"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /replace = %d %s", rec.Code, rec.Body)
	}
	s = decodeSession(t, rec)
	if s.SelectedModels[0] != "gamma" || !s.LatestRound().HasModel("gamma") {
		t.Errorf("after replace: models %v", s.SelectedModels)
	}
}

func TestDecide(t *testing.T) {
	ts := newTestServer(t)
	s := ts.start(t)
	responses := s.LatestRound().Responses

	rec := ts.do(t, http.MethodPost, "/decide", DecideRequest{
		Action:      string(workshop.ActionReplaceLoser),
		WinnerID:    responses[0].ID,
		LoserID:     responses[1].ID,
		Replacement: "gamma",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /decide = %d %s", rec.Code, rec.Body)
	}
	s = decodeSession(t, rec)
	if !s.LatestRound().HasModel("gamma") || s.LatestRound().HasModel("beta") {
		t.Errorf("loser not replaced: %+v", s.LatestRound().Responses)
	}
	if w := s.LatestRound().Winner(); w == nil || w.ModelID != "alpha" {
		t.Error("winner lost during replace-loser")
	}

	rec = ts.do(t, http.MethodPost, "/decide", DecideRequest{Action: "shrug", WinnerID: responses[0].ID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad action status = %d, want 400", rec.Code)
	}
}

func TestSynthesize(t *testing.T) {
	ts := newTestServer(t)
	ts.start(t)

	ts.anthropic.setReply(func(req *models.PromptRequest) (*models.Completion, error) {
		return &models.Completion{Text: "```json\n{\"insights\":[{\"title\":\"Brevity\",\"desc\":\"Shorter won\"}],\"finalPrompt\":\"Write a haiku.\"}\n```", InputTokens: 200, OutputTokens: 40}, nil
	})

	rec := ts.do(t, http.MethodPost, "/synthesize", SynthesizeRequest{Template: "merge"})
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /synthesize = %d %s", rec.Code, rec.Body)
	}
	var rep workshop.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &rep); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if rep.FinalPrompt != "Write a haiku." || rep.Template != "merge" || rep.Model != "alpha" {
		t.Errorf("report = %+v", rep)
	}
}

func TestSynthesize_Failures(t *testing.T) {
	tests := []struct {
		name  string
		req   SynthesizeRequest
		reply func(req *models.PromptRequest) (*models.Completion, error)
		want  int
	}{
		{
			name: "transport error",
			reply: func(*models.PromptRequest) (*models.Completion, error) {
				return nil, provider.ErrUnavailable
			},
			want: http.StatusBadGateway,
		},
		{
			name: "malformed output",
			reply: func(*models.PromptRequest) (*models.Completion, error) {
				return &models.Completion{Text: "sorry, no JSON"}, nil
			},
			want: http.StatusBadGateway,
		},
		{
			name: "unknown template",
			req:  SynthesizeRequest{Template: "poetry"},
			want: http.StatusBadRequest,
		},
		{
			name: "unknown model",
			req:  SynthesizeRequest{Model: "zeta"},
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.start(t)
			before := ts.engine.Snapshot()
			ts.anthropic.setReply(tt.reply)

			rec := ts.do(t, http.MethodPost, "/synthesize", tt.req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if after := ts.engine.Snapshot(); after.RoundCount() != before.RoundCount() {
				t.Error("synthesis mutated the session")
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{workshop.ErrCommandInFlight, http.StatusConflict},
		{workshop.ErrNoSession, http.StatusNotFound},
		{session.ErrSessionNotFound, http.StatusNotFound},
		{workshop.ErrIterationLocked, http.StatusBadRequest},
		{workshop.ErrAmbiguousResponse, http.StatusBadRequest},
		{workshop.ErrMalformedReport, http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.start(t)

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "promptlab_provider_requests_total") {
		t.Error("metrics output missing provider counter")
	}
}
