package repl

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dschwags/Prompt-Lab-sub000/internal/cost"
	"github.com/dschwags/Prompt-Lab-sub000/internal/display"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

type mockProvider struct {
	name models.ProviderType
}

func (m *mockProvider) Name() models.ProviderType {
	return m.name
}

func (m *mockProvider) SendPrompt(_ context.Context, req *models.PromptRequest) (*models.Completion, error) {
	return &models.Completion{
		Text:         "answer from " + req.Model,
		InputTokens:  100,
		OutputTokens: 40,
	}, nil
}

type staticKeys struct{}

func (staticKeys) Lookup(p models.ProviderType) string {
	return "key-" + string(p)
}

func testRegistry() *models.ModelRegistry {
	r := models.NewModelRegistry()
	_ = r.Register(&models.ModelInfo{ID: "alpha", DisplayName: "Alpha", Provider: models.ProviderAnthropic, InputPerMTok: 1, OutputPerMTok: 2})
	_ = r.Register(&models.ModelInfo{ID: "beta", DisplayName: "Beta", Provider: models.ProviderOpenAI, InputPerMTok: 3, OutputPerMTok: 4})
	_ = r.Register(&models.ModelInfo{ID: "gamma", DisplayName: "Gamma", Provider: models.ProviderGoogle})
	return r
}

type harness struct {
	repl   *REPL
	out    *bytes.Buffer
	errOut *bytes.Buffer
	mgr    *session.Manager
	engine *workshop.Engine
}

func testREPL(t *testing.T, input string) *harness {
	t.Helper()
	tmpDir := t.TempDir()

	store, err := session.NewStoreWithPath(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	mgr := session.NewManager(store)
	t.Cleanup(func() { mgr.Close() })

	registry := testRegistry()
	factory := provider.NewFactory(registry)
	for _, p := range models.ValidProviders() {
		factory.Register(&mockProvider{name: p})
	}

	exec := workshop.NewExecutor(registry, factory, cost.NewTable(registry), staticKeys{}, workshop.ExecutorOptions{})
	engine := workshop.NewEngine(exec, mgr)

	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	r := New(&Config{
		In:             strings.NewReader(input),
		Out:            out,
		Err:            errBuf,
		Engine:         engine,
		Synthesizer:    workshop.NewSynthesizer(exec, 0),
		Registry:       registry,
		SessionMgr:     mgr,
		Displayer:      display.New(out),
		SynthesisModel: "alpha",
	})

	return &harness{repl: r, out: out, errOut: errBuf, mgr: mgr, engine: engine}
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	if err := h.repl.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestNew(t *testing.T) {
	h := testREPL(t, "")

	if h.repl == nil {
		t.Fatal("New() returned nil")
	}
	if len(h.repl.commands) == 0 {
		t.Error("New() commands not registered")
	}
}

func TestREPL_CommandsRegistered(t *testing.T) {
	h := testREPL(t, "")

	expectedCommands := []string{
		"start", "new",
		"round", "next", "r",
		"winner", "w", "pick",
		"lock", "l",
		"checkpoint", "cp",
		"replace", "swap",
		"feedback", "fb",
		"decide",
		"synth", "synthesize",
		"show", "s",
		"history", "h",
		"export", "save",
		"session", "sess",
		"models", "m",
		"cost", "$",
		"reset",
		"help", "?",
		"quit", "exit", "q",
	}

	for _, cmd := range expectedCommands {
		if _, ok := h.repl.commands[cmd]; !ok {
			t.Errorf("Command %q not registered", cmd)
		}
	}
}

func TestREPL_Run_Quit(t *testing.T) {
	h := testREPL(t, "quit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "Goodbye!") {
		t.Error("Run() quit command did not output 'Goodbye!'")
	}
}

func TestREPL_Run_Help(t *testing.T) {
	h := testREPL(t, "help\nquit\n")
	h.run(t)

	output := h.out.String()
	if !strings.Contains(output, "Available commands") {
		t.Error("Run() help did not show available commands")
	}
	if !strings.Contains(output, "checkpoint") {
		t.Error("Run() help did not list checkpoint command")
	}
}

func TestREPL_Run_UnknownCommand(t *testing.T) {
	h := testREPL(t, "unknowncommand\nquit\n")
	h.run(t)

	if !strings.Contains(h.errOut.String(), "unknown command") {
		t.Errorf("stderr = %q, want unknown command error", h.errOut.String())
	}
}

func TestREPL_Run_EmptyLine(t *testing.T) {
	h := testREPL(t, "\n\n\nquit\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Errorf("stderr = %q, want empty", h.errOut.String())
	}
}

func TestREPL_Stop(t *testing.T) {
	h := testREPL(t, "")

	h.repl.running = true
	h.repl.Stop()

	if h.repl.running {
		t.Error("Stop() did not stop the REPL")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple command",
			input: "round shorter",
			want:  []string{"round", "shorter"},
		},
		{
			name:  "double quotes",
			input: `start alpha,beta "write a haiku"`,
			want:  []string{"start", "alpha,beta", "write a haiku"},
		},
		{
			name:  "single quotes",
			input: `round 'be more formal'`,
			want:  []string{"round", "be more formal"},
		},
		{
			name:  "multiple arguments",
			input: "session load abc123",
			want:  []string{"session", "load", "abc123"},
		},
		{
			name:  "nested quote kept",
			input: `round "don't stop"`,
			want:  []string{"round", "don't stop"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "whitespace only",
			input: "   ",
			want:  nil,
		},
		{
			name:  "multiple spaces",
			input: "feedback    abc    1   -1",
			want:  []string{"feedback", "abc", "1", "-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCommand(tt.input)
			if len(got) != len(tt.want) {
				t.Errorf("parseCommand() = %v, want %v", got, tt.want)
				return
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("parseCommand()[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartCommand(t *testing.T) {
	h := testREPL(t, "start alpha,beta \"write a haiku\"\nquit\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Fatalf("stderr = %q", h.errOut.String())
	}
	s := h.engine.Snapshot()
	if s == nil {
		t.Fatal("start did not create a workshop")
	}
	if s.PromptData.User != "write a haiku" {
		t.Errorf("prompt = %q", s.PromptData.User)
	}
	if got := len(s.LatestRound().Responses); got != 2 {
		t.Errorf("responses = %d, want 2", got)
	}
	if !strings.Contains(h.out.String(), "answer from beta") {
		t.Error("start did not display the round")
	}
	if !h.mgr.HasSession() {
		t.Error("start did not persist the session")
	}
}

func TestStartCommand_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing prompt", "start alpha,beta\n", "usage"},
		{"one model", "start alpha hi\n", workshop.ErrNotEnoughModels.Error()},
		{"unknown model", "start alpha,nope hi\n", "unknown model"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testREPL(t, tt.input)
			h.run(t)
			if !strings.Contains(h.errOut.String(), tt.want) {
				t.Errorf("stderr = %q, want %q", h.errOut.String(), tt.want)
			}
			if h.engine.Snapshot() != nil {
				t.Error("failed start left a workshop behind")
			}
		})
	}
}

func TestWorkflow_WinnerLockRound(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)

	s := h.engine.Snapshot()
	winner := s.LatestRound().Responses[1]

	h.repl.in = strings.NewReader(strings.Join([]string{
		"winner " + winner.ID[:8],
		"feedback " + winner.ID + " 1 0",
		"lock beta",
		"round 'tighter please'",
		"history",
		"quit",
	}, "\n") + "\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Fatalf("stderr = %q", h.errOut.String())
	}

	s = h.engine.Snapshot()
	it := s.ActiveIteration()
	if it.LockedModelID != "beta" || it.LockInRound != 1 {
		t.Errorf("lock = %q@%d, want beta@1", it.LockedModelID, it.LockInRound)
	}
	if len(it.Rounds) != 2 {
		t.Fatalf("rounds = %d, want 2", len(it.Rounds))
	}
	last := it.Rounds[1]
	if len(last.Responses) != 1 || last.Responses[0].ModelID != "beta" {
		t.Errorf("locked round responses = %+v", last.Responses)
	}
	if last.Pivot != "tighter please" {
		t.Errorf("pivot = %q", last.Pivot)
	}
	first := it.Rounds[0]
	if w := first.Winner(); w == nil || w.ModelID != "beta" {
		t.Error("winner not recorded on round 1")
	}
	if fb := first.Responses[1].Feedback; fb == nil || fb.Relevance != 1 {
		t.Errorf("feedback = %+v", fb)
	}

	output := h.out.String()
	for _, want := range []string{"Winner: Beta", "Locked iteration 1 to beta after round 1", "Iteration 1 (active, locked to beta at round 1)"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestCheckpointCommand(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\ncheckpoint 'new direction'\nquit\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Fatalf("stderr = %q", h.errOut.String())
	}
	s := h.engine.Snapshot()
	if len(s.Iterations) != 2 {
		t.Fatalf("iterations = %d, want 2", len(s.Iterations))
	}
	if s.Iterations[0].Status != session.IterationCompleted {
		t.Errorf("first iteration status = %s", s.Iterations[0].Status)
	}
	if !strings.Contains(h.out.String(), "Started iteration 2") {
		t.Error("checkpoint did not report the new iteration")
	}
}

func TestReplaceCommand(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)

	target := h.engine.Snapshot().LatestRound().Responses[0]
	h.repl.in = strings.NewReader("replace " + target.ID + " gamma\nquit\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Fatalf("stderr = %q", h.errOut.String())
	}
	s := h.engine.Snapshot()
	if s.LatestRound().HasModel("alpha") || !s.LatestRound().HasModel("gamma") {
		t.Errorf("round models not replaced: %+v", s.LatestRound().Responses)
	}
	if !strings.Contains(h.out.String(), "Models: gamma, beta") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestDecideCommand_LockWinner(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)

	winner := h.engine.Snapshot().LatestRound().Responses[0]
	h.repl.in = strings.NewReader("decide lock-winner " + winner.ID + "\nquit\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Fatalf("stderr = %q", h.errOut.String())
	}
	if it := h.engine.Snapshot().ActiveIteration(); it.LockedModelID != "alpha" {
		t.Errorf("locked model = %q, want alpha", it.LockedModelID)
	}
}

func TestDecideCommand_ReplaceLoserNeedsArgs(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)

	winner := h.engine.Snapshot().LatestRound().Responses[0]
	h.repl.in = strings.NewReader("decide replace-loser " + winner.ID + "\nquit\n")
	h.run(t)

	if !strings.Contains(h.errOut.String(), "usage") {
		t.Errorf("stderr = %q, want usage", h.errOut.String())
	}
}

func TestFeedbackCommand_Invalid(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)

	id := h.engine.Snapshot().LatestRound().Responses[0].ID
	h.repl.in = strings.NewReader("feedback " + id + " 2 0\nfeedback " + id + " x 0\nquit\n")
	h.run(t)

	errOut := h.errOut.String()
	if !strings.Contains(errOut, workshop.ErrInvalidFeedback.Error()) {
		t.Errorf("stderr = %q, want invalid feedback", errOut)
	}
	if !strings.Contains(errOut, "invalid relevance") {
		t.Errorf("stderr = %q, want parse error", errOut)
	}
}

func TestCommands_NoSession(t *testing.T) {
	for _, line := range []string{"round", "lock alpha", "checkpoint", "reset", "synth"} {
		t.Run(line, func(t *testing.T) {
			h := testREPL(t, line+"\nquit\n")
			h.run(t)
			if !strings.Contains(h.errOut.String(), "Error:") {
				t.Errorf("%q produced no error", line)
			}
		})
	}
}

func TestShowAndHistory_NoSession(t *testing.T) {
	h := testREPL(t, "show\nhistory\nquit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "No active workshop") {
		t.Errorf("output = %q", h.out.String())
	}
}

func TestExportCommand(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)

	dir := t.TempDir()
	t.Chdir(dir)
	h.repl.in = strings.NewReader("export out.md\nexport out.exe\nexport /tmp/abs.md\nquit\n")
	h.run(t)

	data, err := os.ReadFile(filepath.Join(dir, "out.md"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "# Prompt Workshop") {
		t.Errorf("export content = %q", data)
	}
	if got := strings.Count(h.errOut.String(), "Error:"); got != 2 {
		t.Errorf("rejected exports = %d, want 2: %q", got, h.errOut.String())
	}
}

func TestSessionCommand_List_Empty(t *testing.T) {
	h := testREPL(t, "session list\nquit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "No saved workshops") {
		t.Error("session list did not show empty message")
	}
}

func TestSessionCommand_LoadResumes(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\n")
	h.run(t)
	want := h.engine.Snapshot()

	fresh := workshop.NewEngine(nil, h.mgr)
	h.repl.engine = fresh
	h.repl.in = strings.NewReader("session load " + want.ID[:8] + "\nquit\n")
	h.run(t)

	if h.errOut.Len() != 0 {
		t.Fatalf("stderr = %q", h.errOut.String())
	}
	got := fresh.Snapshot()
	if got == nil || got.ID != want.ID {
		t.Fatalf("Snapshot() = %v, want session %s", got, want.ID)
	}
	if !strings.Contains(h.out.String(), "Loaded workshop") {
		t.Error("session load did not confirm")
	}
}

func TestCostCommand(t *testing.T) {
	h := testREPL(t, "cost total\nstart alpha,beta hi\ncost session\ncost provider\ncost today\ncost bogus\nquit\n")
	h.run(t)

	output := h.out.String()
	for _, want := range []string{"No costs recorded yet.", "Session cost:", "anthropic", "Today's cost"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if !strings.Contains(h.errOut.String(), "unknown cost command") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
}

func TestModelsCommand(t *testing.T) {
	h := testREPL(t, "models\nquit\n")
	h.run(t)

	output := h.out.String()
	if !strings.Contains(output, "alpha") || !strings.Contains(output, "price unknown") {
		t.Errorf("models output = %q", output)
	}
}

func TestResetCommand(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\nreset\nquit\n")
	h.run(t)

	if h.engine.Snapshot() != nil {
		t.Error("reset left a workshop behind")
	}
	if !strings.Contains(h.out.String(), "Workshop discarded") {
		t.Error("reset did not confirm")
	}
}

func TestPrompt_ShowsIterationState(t *testing.T) {
	h := testREPL(t, "start alpha,beta hi\nlock alpha\nquit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "promptlab [it 1 · round 1 · locked alpha]> ") {
		t.Errorf("prompt missing lock state:\n%s", h.out.String())
	}
}

func TestCommand_Interface(t *testing.T) {
	for _, cmd := range allCommands() {
		t.Run(cmd.Name(), func(t *testing.T) {
			if cmd.Name() == "" {
				t.Error("Name() returned empty string")
			}
			if cmd.Description() == "" {
				t.Error("Description() returned empty string")
			}
			if cmd.Usage() == "" {
				t.Error("Usage() returned empty string")
			}
		})
	}
}
