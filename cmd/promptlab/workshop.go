package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dschwags/Prompt-Lab-sub000/internal/security"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
)

var (
	flagModels    []string
	flagSystem    string
	flagContext   string
	flagRelevance int
	flagTone      int
	flagTemplate  string
	flagSynthWith string
)

func newStartCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start <prompt>",
		Short: "Start a workshop and run the first round",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				system := flagSystem
				if system == "" {
					system = e.cfg.Workshop.SystemPrompt
				}
				fmt.Fprintf(app.Out, "Dispatching to %d models...\n", len(flagModels))
				s, err := e.engine.StartWorkshop(ctx, workshop.StartRequest{
					Models:         flagModels,
					System:         system,
					User:           strings.Join(args, " "),
					ProjectContext: flagContext,
				})
				if err != nil {
					return err
				}
				e.display.Session(s)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&flagModels, "models", "m", nil, "comma separated model ids (at least two)")
	cmd.Flags().StringVar(&flagSystem, "system", "", "system prompt (defaults to workshop.system_prompt)")
	cmd.Flags().StringVar(&flagContext, "context", "", "project context stored with the session")
	_ = cmd.MarkFlagRequired("models")
	return cmd
}

func newRoundCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "round [guidance]",
		Short: "Run the next discussion round",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				s, err := e.engine.ExecuteRound(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				e.display.Round(s.LatestRound())
				return nil
			})
		},
	}
}

func newWinnerCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "winner <response-id>",
		Short: "Mark a response of the latest round as winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := workshop.ResolveResponseID(e.engine.Snapshot(), args[0])
				if err != nil {
					return err
				}
				s, err := e.engine.SelectWinner(ctx, id)
				if err != nil {
					return err
				}
				if w := s.LatestRound().Winner(); w != nil {
					fmt.Fprintf(app.Out, "Winner: %s\n", w.Model)
				}
				return nil
			})
		},
	}
}

func newLockCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <model-id>",
		Short: "Lock the current iteration to one model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				s, err := e.engine.LockIn(ctx, args[0])
				if err != nil {
					return err
				}
				it := s.ActiveIteration()
				fmt.Fprintf(app.Out, "Locked iteration %d to %s after round %d\n", it.Number, it.LockedModelID, it.LockInRound)
				return nil
			})
		},
	}
}

func newCheckpointCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint [guidance]",
		Short: "Close the iteration and start the next one",
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				s, err := e.engine.MarkCheckpoint(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Started iteration %d\n", s.ActiveIteration().Number)
				e.display.Round(s.LatestRound())
				return nil
			})
		},
	}
}

func newReplaceCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "replace <response-id> <model-id>",
		Short: "Re-run one response with a different model",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := workshop.ResolveResponseID(e.engine.Snapshot(), args[0])
				if err != nil {
					return err
				}
				s, err := e.engine.ReplaceModel(ctx, id, args[1])
				if err != nil {
					return err
				}
				e.display.Round(s.LatestRound())
				return nil
			})
		},
	}
}

func newFeedbackCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback <response-id>",
		Short: "Rate a response's relevance and tone (-1, 0 or 1)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				id, err := workshop.ResolveResponseID(e.engine.Snapshot(), args[0])
				if err != nil {
					return err
				}
				if _, err := e.engine.RecordFeedback(ctx, id, flagRelevance, flagTone); err != nil {
					return err
				}
				fmt.Fprintln(app.Out, "Feedback recorded")
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&flagRelevance, "relevance", 0, "relevance rating: -1, 0 or 1")
	cmd.Flags().IntVar(&flagTone, "tone", 0, "tone rating: -1, 0 or 1")
	return cmd
}

func newDecideCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "decide <keep-both|lock-winner|replace-loser> <winner-id> [loser-id model-id]",
		Short: "Pick a winner and apply a follow-up action in one step",
		Args:  cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := workshop.WinnerAction(args[0])
			if action == workshop.ActionReplaceLoser && len(args) != 4 {
				return fmt.Errorf("%w: replace-loser needs a loser id and a replacement model", workshop.ErrInvalidAction)
			}
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				snap := e.engine.Snapshot()
				winner, err := workshop.ResolveResponseID(snap, args[1])
				if err != nil {
					return err
				}
				var loser, replacement string
				if len(args) == 4 {
					if loser, err = workshop.ResolveResponseID(snap, args[2]); err != nil {
						return err
					}
					replacement = args[3]
				}

				s, err := e.engine.ApplyWinnerAction(ctx, action, winner, loser, replacement)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Applied %s\n", action)
				if action == workshop.ActionReplaceLoser {
					e.display.Round(s.LatestRound())
				}
				return nil
			})
		},
	}
}

func newSynthCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize insights and a final prompt from the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				model := flagSynthWith
				if model == "" {
					model = e.cfg.Workshop.SynthesisModel
				}
				fmt.Fprintf(app.Out, "Synthesizing with %s (%s)...\n", model, flagTemplate)
				rep, err := e.synth.Synthesize(ctx, e.engine.Snapshot(), flagTemplate, model)
				if err != nil {
					return err
				}
				e.display.Report(rep)
				return nil
			})
		},
	}

	var ids []string
	for _, t := range workshop.Templates() {
		ids = append(ids, t.ID)
	}
	cmd.Flags().StringVarP(&flagTemplate, "template", "t", "consensus", "synthesis template ("+strings.Join(ids, ", ")+")")
	cmd.Flags().StringVar(&flagSynthWith, "model", "", "model used for synthesis (defaults to workshop.synthesis_model)")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file.md]",
		Short: "Export the session as Markdown (stdout when no file is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withEnv(cmd, func(_ context.Context, e *env) error {
				s := e.engine.Snapshot()
				if s == nil {
					return workshop.ErrNoSession
				}
				md := workshop.ExportMarkdown(s)
				if len(args) == 0 {
					fmt.Fprint(app.Out, md)
					return nil
				}
				if err := security.ValidateExportPath(args[0]); err != nil {
					return err
				}
				if err := os.WriteFile(args[0], []byte(md), 0644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(app.Out, "Exported to %s\n", args[0])
				return nil
			})
		},
	}
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(_ context.Context, e *env) error {
				e.display.Session(e.engine.Snapshot())
				return nil
			})
		},
	}
}

func newSessionsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List saved workshops",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				list, err := e.mgr.ListSessions(ctx)
				if err != nil {
					return err
				}
				e.display.Sessions(list)
				return nil
			})
		},
	}
}

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Delete the current workshop",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				if err := e.engine.Reset(ctx); err != nil {
					return err
				}
				fmt.Fprintln(app.Out, "Workshop discarded")
				return nil
			})
		},
	}
}

func newModelsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.withEnv(cmd, func(_ context.Context, e *env) error {
				for _, id := range e.registry.List() {
					info, _ := e.registry.Get(id)
					price := "price unknown"
					if p, ok := e.prices.Price(id); ok {
						price = fmt.Sprintf("$%.2f/$%.2f per MTok", p.InputPerMTok, p.OutputPerMTok)
					}
					fmt.Fprintf(app.Out, "  %-42s %-10s %s\n", id, info.Provider, price)
				}
				return nil
			})
		},
	}
}
