package workshop

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dschwags/Prompt-Lab-sub000/internal/cost"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

const (
	modelA = "model-a"
	modelB = "model-b"
	modelC = "model-c"
	modelD = "model-d"
)

func testRegistry() *models.ModelRegistry {
	r := models.NewModelRegistry()
	for _, info := range []*models.ModelInfo{
		{ID: modelA, DisplayName: "Model A", Provider: models.ProviderAnthropic, InputPerMTok: 1, OutputPerMTok: 2},
		{ID: modelB, DisplayName: "Model B", Provider: models.ProviderOpenAI, InputPerMTok: 3, OutputPerMTok: 4},
		{ID: modelC, DisplayName: "Model C", Provider: models.ProviderGoogle},
		{ID: modelD, DisplayName: "Model D", Provider: models.ProviderOpenRouter, InputPerMTok: 1, OutputPerMTok: 1},
	} {
		if err := r.Register(info); err != nil {
			panic(err)
		}
	}
	return r
}

type fakeProvider struct {
	name models.ProviderType

	mu    sync.Mutex
	calls []*models.PromptRequest
	reply func(req *models.PromptRequest) (*models.Completion, error)
}

func (p *fakeProvider) Name() models.ProviderType {
	return p.name
}

func (p *fakeProvider) SendPrompt(ctx context.Context, req *models.PromptRequest) (*models.Completion, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	reply := p.reply
	p.mu.Unlock()

	if reply != nil {
		return reply(req)
	}
	return &models.Completion{Text: "reply from " + req.Model, InputTokens: 100, OutputTokens: 50}, nil
}

func (p *fakeProvider) Calls() []*models.PromptRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.PromptRequest(nil), p.calls...)
}

type fakeKeys map[models.ProviderType]string

func (k fakeKeys) Lookup(p models.ProviderType) string {
	return k[p]
}

type fakeStore struct {
	mu       sync.Mutex
	saveErr  error
	saved    []*session.Session
	deleted  []string
	deleteFn func(id string) error
}

func (s *fakeStore) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, sess.Clone())
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if s.deleteFn != nil {
		return s.deleteFn(id)
	}
	return nil
}

type fixture struct {
	registry  *models.ModelRegistry
	providers map[models.ProviderType]*fakeProvider
	keys      fakeKeys
	store     *fakeStore
	exec      *Executor
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry:  testRegistry(),
		providers: make(map[models.ProviderType]*fakeProvider),
		keys:      fakeKeys{},
		store:     &fakeStore{},
	}

	factory := provider.NewFactory(f.registry)
	for _, p := range models.ValidProviders() {
		fp := &fakeProvider{name: p}
		f.providers[p] = fp
		factory.Register(fp)
		f.keys[p] = "key-" + string(p)
	}

	f.exec = NewExecutor(f.registry, factory, cost.NewTable(f.registry), f.keys, ExecutorOptions{})
	f.engine = NewEngine(f.exec, f.store)
	return f
}

func (f *fixture) start(t *testing.T, modelIDs ...string) *session.Session {
	t.Helper()
	s, err := f.engine.StartWorkshop(context.Background(), StartRequest{Models: modelIDs, System: "sys", User: "X"})
	if err != nil {
		t.Fatalf("StartWorkshop() error = %v", err)
	}
	return s
}

func responseFor(t *testing.T, r *session.Round, modelID string) *session.Response {
	t.Helper()
	for i := range r.Responses {
		if r.Responses[i].ModelID == modelID {
			return &r.Responses[i]
		}
	}
	t.Fatalf("round %d has no response from %s", r.Number, modelID)
	return nil
}

var errBoom = errors.New("boom")
