package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dschwags/Prompt-Lab-sub000/internal/config"
	"github.com/dschwags/Prompt-Lab-sub000/internal/cost"
	"github.com/dschwags/Prompt-Lab-sub000/internal/display"
	"github.com/dschwags/Prompt-Lab-sub000/internal/keys"
	"github.com/dschwags/Prompt-Lab-sub000/internal/logging"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider/anthropic"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider/google"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider/openai"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider/openrouter"
	"github.com/dschwags/Prompt-Lab-sub000/internal/security"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session/postgres"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

var (
	version = "dev"
	commit  = "none"
)

var flagConfig string

type App struct {
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	Registry *models.ModelRegistry
	GetEnv   func(string) string
	// NewProvider builds the adapter for one provider tag.
	NewProvider func(p models.ProviderType, cfg *provider.Config) provider.Provider
	NewKeyStore func() (*keys.Store, error)
	// ReadSecret reads an API key without echoing it.
	ReadSecret func() (string, error)
}

func DefaultApp() *App {
	return &App{
		In:          os.Stdin,
		Out:         os.Stdout,
		Err:         os.Stderr,
		Registry:    models.DefaultRegistry(),
		GetEnv:      os.Getenv,
		NewProvider: defaultProvider,
		NewKeyStore: keys.NewStore,
		ReadSecret: func() (string, error) {
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			return string(b), err
		},
	}
}

func defaultProvider(p models.ProviderType, cfg *provider.Config) provider.Provider {
	switch p {
	case models.ProviderAnthropic:
		return anthropic.New(cfg)
	case models.ProviderOpenAI:
		return openai.New(cfg)
	case models.ProviderGoogle:
		return google.New(cfg)
	case models.ProviderOpenRouter:
		return openrouter.New(cfg)
	default:
		return nil
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := DefaultApp()
	rootCmd := newRootCmd(app)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promptlab",
		Short: "Run one prompt against several AI models and refine it in rounds",
		Long: `promptlab is a prompt workshop. It sends a prompt to several AI providers
in parallel, lets you pick winners and steer follow-up rounds, and
synthesizes the history into an improved prompt.

Supported providers: anthropic, openai, google, openrouter.

Examples:
  promptlab start -m claude-sonnet-4-5,gpt-4o "Explain CRDTs to a PM"
  promptlab winner 3fa2c1
  promptlab round "shorter, with one concrete example"
  promptlab synth --template merge`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(app.Out)
	cmd.SetErr(app.Err)
	if app.In != nil {
		cmd.SetIn(app.In)
	}

	cmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ./promptlab.yaml or ~/.config/promptlab/config.yaml)")

	cmd.AddCommand(
		newStartCmd(app),
		newRoundCmd(app),
		newWinnerCmd(app),
		newLockCmd(app),
		newCheckpointCmd(app),
		newReplaceCmd(app),
		newFeedbackCmd(app),
		newDecideCmd(app),
		newSynthCmd(app),
		newExportCmd(app),
		newShowCmd(app),
		newSessionsCmd(app),
		newResetCmd(app),
		newModelsCmd(app),
		newKeysCmd(app),
		newPricingCmd(app),
		newCostCmd(app),
		newServeCmd(app),
		newReplCmd(app),
	)

	return cmd
}

// env is everything a command needs, built from configuration.
type env struct {
	cfg      *config.Config
	registry *models.ModelRegistry
	prices   *cost.Table
	mgr      *session.Manager
	engine   *workshop.Engine
	synth    *workshop.Synthesizer
	display  *display.Displayer
}

func (e *env) Close() {
	if err := e.mgr.Close(); err != nil {
		logging.Log("storage", "close failed", "error", err)
	}
}

// open loads configuration, wires storage and providers, and resumes the
// most recent session.
func (a *App) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	logging.Init(a.Err, cfg.Log.Debug, cfg.Log.Level)

	for _, mc := range cfg.Models {
		info := &models.ModelInfo{
			ID:            mc.ID,
			DisplayName:   mc.Name,
			Provider:      models.ProviderType(mc.Provider),
			InputPerMTok:  mc.InputPerMTok,
			OutputPerMTok: mc.OutputPerMTok,
		}
		if err := a.Registry.Register(info); err != nil {
			return nil, fmt.Errorf("model %q: %w", mc.ID, err)
		}
	}

	factory, err := a.providers(cfg)
	if err != nil {
		return nil, err
	}

	prices := cost.NewTable(a.Registry)
	if err := prices.LoadOverrides(); err != nil {
		logging.Log("workshop", "ignoring unreadable pricing overrides", "error", err)
	}

	store, err := a.NewKeyStore()
	if err != nil {
		logging.Log("workshop", "key store unavailable, using environment only", "error", err)
	}
	resolver := keys.NewResolver(store, a.GetEnv)

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}
	mgr := session.NewManager(repo)

	exec := workshop.NewExecutor(a.Registry, factory, prices, resolver, workshop.ExecutorOptions{
		StaggerDelay: cfg.Workshop.StaggerDelay,
		MaxParallel:  cfg.Workshop.MaxParallel,
		MaxTokens:    cfg.Workshop.MaxTokens,
	})
	engine := workshop.NewEngine(exec, mgr)

	s, err := mgr.Resume(ctx)
	switch {
	case errors.Is(err, session.ErrNoSession):
	case err != nil:
		mgr.Close()
		return nil, err
	default:
		if err := engine.Resume(s); err != nil {
			mgr.Close()
			return nil, err
		}
	}

	return &env{
		cfg:      cfg,
		registry: a.Registry,
		prices:   prices,
		mgr:      mgr,
		engine:   engine,
		synth:    workshop.NewSynthesizer(exec, cfg.Workshop.ResponseTruncate),
		display:  display.New(a.Out),
	}, nil
}

func (a *App) providers(cfg *config.Config) (*provider.Factory, error) {
	factory := provider.NewFactory(a.Registry)
	for _, p := range models.ValidProviders() {
		pc := cfg.Providers[string(p)]
		if pc.BaseURL != "" {
			if err := security.ValidateBaseURL(pc.BaseURL, false, pc.AllowInsecure); err != nil {
				return nil, fmt.Errorf("provider %s: %w", p, err)
			}
		}
		providerCfg := &provider.Config{BaseURL: pc.BaseURL, TimeoutSec: pc.TimeoutSec}
		factory.Configure(p, providerCfg)

		prov := a.NewProvider(p, providerCfg)
		if prov == nil {
			continue
		}
		factory.Register(provider.WithRetry(prov, cfg.Workshop.MaxRetries))
	}
	return factory, nil
}

func openRepository(ctx context.Context, cfg *config.Config) (session.Repository, error) {
	switch cfg.Storage.Type {
	case "memory":
		return session.NewMemoryStore(), nil
	case "postgres":
		return postgres.New(ctx, postgres.Config{
			DSN:      cfg.Storage.Postgres.DSN,
			MaxConns: cfg.Storage.Postgres.MaxConns,
		})
	default:
		return session.NewStoreWithPath(cfg.Storage.Path)
	}
}

// withEnv runs fn against a freshly opened env.
func (a *App) withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}
