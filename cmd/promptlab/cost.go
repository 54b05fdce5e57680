package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
)

func newCostCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cost [today|week|month|total|provider|session]",
		Short: "Show recorded spend",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			period := "total"
			if len(args) == 1 {
				period = strings.ToLower(args[0])
			}
			return app.withEnv(cmd, func(ctx context.Context, e *env) error {
				err := runCost(ctx, app, e.mgr, period, time.Now())
				if errors.Is(err, session.ErrNoCostData) {
					fmt.Fprintf(app.Out, "Cost tracking is not available for %s storage.\n", e.cfg.Storage.Type)
					return nil
				}
				return err
			})
		},
	}
}

func runCost(ctx context.Context, app *App, mgr *session.Manager, period string, now time.Time) error {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.AddDate(0, 0, 1)

	var (
		label   string
		summary *session.CostSummary
		err     error
	)
	switch period {
	case "today":
		label = "Today"
		summary, err = mgr.GetCostByDateRange(ctx, today, tomorrow)
	case "week":
		label = "Last 7 days"
		summary, err = mgr.GetCostByDateRange(ctx, today.AddDate(0, 0, -6), tomorrow)
	case "month":
		label = "Last 30 days"
		summary, err = mgr.GetCostByDateRange(ctx, today.AddDate(0, 0, -29), tomorrow)
	case "total":
		label = "Total"
		summary, err = mgr.GetTotalCost(ctx)
	case "session":
		if !mgr.HasSession() {
			fmt.Fprintln(app.Out, "No active session.")
			return nil
		}
		label = "Session"
		summary, err = mgr.GetSessionCost(ctx)
	case "provider":
		return costByProvider(ctx, app, mgr)
	default:
		return fmt.Errorf("unknown cost period %q (want today, week, month, total, provider or session)", period)
	}
	if err != nil {
		return err
	}

	if summary.EntryCount == 0 {
		fmt.Fprintf(app.Out, "%s: no costs recorded.\n", label)
		return nil
	}
	fmt.Fprintf(app.Out, "%s: $%.4f (%d call(s), %d in / %d out tokens)\n",
		label, summary.TotalCost, summary.EntryCount, summary.InputTokens, summary.OutputTokens)
	return nil
}

func costByProvider(ctx context.Context, app *App, mgr *session.Manager) error {
	summaries, err := mgr.GetCostByProvider(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(app.Out, "No costs recorded yet.")
		return nil
	}

	fmt.Fprintf(app.Out, "%-12s  %-8s  %s\n", "Provider", "Calls", "Cost")
	fmt.Fprintln(app.Out, strings.Repeat("-", 35))

	var total float64
	var calls int
	for _, ps := range summaries {
		fmt.Fprintf(app.Out, "%-12s  %-8d  $%.4f\n", ps.Provider, ps.EntryCount, ps.TotalCost)
		total += ps.TotalCost
		calls += ps.EntryCount
	}

	fmt.Fprintln(app.Out, strings.Repeat("-", 35))
	fmt.Fprintf(app.Out, "%-12s  %-8d  $%.4f\n", "Total", calls, total)
	return nil
}
