package repl

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dschwags/Prompt-Lab-sub000/internal/security"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
)

type Command interface {
	Name() string
	Aliases() []string
	Description() string
	Usage() string
	Execute(ctx context.Context, r *REPL, args []string) error
}

func allCommands() []Command {
	return []Command{
		&StartCommand{},
		&RoundCommand{},
		&WinnerCommand{},
		&LockCommand{},
		&CheckpointCommand{},
		&ReplaceCommand{},
		&FeedbackCommand{},
		&DecideCommand{},
		&SynthCommand{},
		&ShowCommand{},
		&HistoryCommand{},
		&ExportCommand{},
		&SessionCommand{},
		&ModelsCommand{},
		&CostCommand{},
		&ResetCommand{},
		&HelpCommand{},
		&QuitCommand{},
	}
}

func (r *REPL) registerCommands() {
	for _, cmd := range allCommands() {
		r.commands[cmd.Name()] = cmd
		for _, alias := range cmd.Aliases() {
			r.commands[alias] = cmd
		}
	}
}

// StartCommand opens a new workshop
type StartCommand struct{}

func (c *StartCommand) Name() string        { return "start" }
func (c *StartCommand) Aliases() []string   { return []string{"new"} }
func (c *StartCommand) Description() string { return "Start a workshop with two or more models" }
func (c *StartCommand) Usage() string       { return "start <model,model[,...]> <prompt>" }

func (c *StartCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}

	var ids []string
	for _, id := range strings.Split(args[0], ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	fmt.Fprintf(r.out, "Dispatching to %d models...\n", len(ids))
	s, err := r.engine.StartWorkshop(ctx, workshop.StartRequest{
		Models: ids,
		User:   strings.Join(args[1:], " "),
	})
	if err != nil {
		return err
	}
	r.displayer.Round(s.LatestRound())
	return nil
}

// RoundCommand runs the next discussion round
type RoundCommand struct{}

func (c *RoundCommand) Name() string        { return "round" }
func (c *RoundCommand) Aliases() []string   { return []string{"next", "r"} }
func (c *RoundCommand) Description() string { return "Run the next round, optionally with guidance" }
func (c *RoundCommand) Usage() string       { return "round [guidance]" }

func (c *RoundCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	s, err := r.engine.ExecuteRound(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	r.displayer.Round(s.LatestRound())
	return nil
}

// WinnerCommand marks the best response of the latest round
type WinnerCommand struct{}

func (c *WinnerCommand) Name() string        { return "winner" }
func (c *WinnerCommand) Aliases() []string   { return []string{"w", "pick"} }
func (c *WinnerCommand) Description() string { return "Mark a response of the latest round as winner" }
func (c *WinnerCommand) Usage() string       { return "winner <response-id>" }

func (c *WinnerCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	id, err := r.resolve(args[0])
	if err != nil {
		return err
	}
	s, err := r.engine.SelectWinner(ctx, id)
	if err != nil {
		return err
	}
	if w := s.LatestRound().Winner(); w != nil {
		fmt.Fprintf(r.out, "Winner: %s\n", w.Model)
	}
	return nil
}

// LockCommand restricts the iteration to one model
type LockCommand struct{}

func (c *LockCommand) Name() string        { return "lock" }
func (c *LockCommand) Aliases() []string   { return []string{"l"} }
func (c *LockCommand) Description() string { return "Lock the current iteration to one model" }
func (c *LockCommand) Usage() string       { return "lock <model-id>" }

func (c *LockCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	s, err := r.engine.LockIn(ctx, args[0])
	if err != nil {
		return err
	}
	it := s.ActiveIteration()
	fmt.Fprintf(r.out, "Locked iteration %d to %s after round %d\n", it.Number, it.LockedModelID, it.LockInRound)
	return nil
}

// CheckpointCommand closes the iteration and starts a fresh one
type CheckpointCommand struct{}

func (c *CheckpointCommand) Name() string        { return "checkpoint" }
func (c *CheckpointCommand) Aliases() []string   { return []string{"cp"} }
func (c *CheckpointCommand) Description() string { return "Close the iteration and start a new one" }
func (c *CheckpointCommand) Usage() string       { return "checkpoint [guidance]" }

func (c *CheckpointCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	s, err := r.engine.MarkCheckpoint(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Started iteration %d\n", s.ActiveIteration().Number)
	r.displayer.Round(s.LatestRound())
	return nil
}

// ReplaceCommand swaps the model behind one response
type ReplaceCommand struct{}

func (c *ReplaceCommand) Name() string        { return "replace" }
func (c *ReplaceCommand) Aliases() []string   { return []string{"swap"} }
func (c *ReplaceCommand) Description() string { return "Re-run one response with a different model" }
func (c *ReplaceCommand) Usage() string       { return "replace <response-id> <model-id>" }

func (c *ReplaceCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	id, err := r.resolve(args[0])
	if err != nil {
		return err
	}
	s, err := r.engine.ReplaceModel(ctx, id, args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Models: %s\n", strings.Join(s.SelectedModels, ", "))
	return nil
}

// FeedbackCommand records relevance and tone for a response
type FeedbackCommand struct{}

func (c *FeedbackCommand) Name() string        { return "feedback" }
func (c *FeedbackCommand) Aliases() []string   { return []string{"fb"} }
func (c *FeedbackCommand) Description() string { return "Rate a response (-1, 0 or 1 for relevance and tone)" }
func (c *FeedbackCommand) Usage() string       { return "feedback <response-id> <relevance> <tone>" }

func (c *FeedbackCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	id, err := r.resolve(args[0])
	if err != nil {
		return err
	}
	relevance, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid relevance %q: %w", args[1], err)
	}
	tone, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("invalid tone %q: %w", args[2], err)
	}
	if _, err := r.engine.RecordFeedback(ctx, id, relevance, tone); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Feedback recorded")
	return nil
}

// DecideCommand applies a winner decision in one step
type DecideCommand struct{}

func (c *DecideCommand) Name() string      { return "decide" }
func (c *DecideCommand) Aliases() []string { return nil }
func (c *DecideCommand) Description() string {
	return "Pick a winner and keep both, lock the winner, or replace the loser"
}
func (c *DecideCommand) Usage() string {
	return "decide <keep-both|lock-winner|replace-loser> <winner-id> [loser-id model-id]"
}

func (c *DecideCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: %s", c.Usage())
	}
	action := workshop.WinnerAction(args[0])
	winner, err := r.resolve(args[1])
	if err != nil {
		return err
	}

	var loser, replacement string
	if action == workshop.ActionReplaceLoser {
		if len(args) != 4 {
			return fmt.Errorf("usage: %s", c.Usage())
		}
		if loser, err = r.resolve(args[2]); err != nil {
			return err
		}
		replacement = args[3]
	}

	s, err := r.engine.ApplyWinnerAction(ctx, action, winner, loser, replacement)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Applied %s\n", action)
	if action == workshop.ActionReplaceLoser {
		r.displayer.Round(s.LatestRound())
	}
	return nil
}

// SynthCommand runs a synthesis pass over the session
type SynthCommand struct{}

func (c *SynthCommand) Name() string        { return "synth" }
func (c *SynthCommand) Aliases() []string   { return []string{"synthesize"} }
func (c *SynthCommand) Description() string { return "Synthesize insights and a final prompt" }
func (c *SynthCommand) Usage() string {
	return "synth [consensus|contrast|debate|merge|rapid] [model-id]"
}

func (c *SynthCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	tmpl := "consensus"
	model := r.synthesisModel
	if len(args) > 0 {
		tmpl = args[0]
	}
	if len(args) > 1 {
		model = args[1]
	}

	fmt.Fprintf(r.out, "Synthesizing with %s (%s)...\n", model, tmpl)
	rep, err := r.synthesizer.Synthesize(ctx, r.engine.Snapshot(), tmpl, model)
	if err != nil {
		return err
	}
	r.displayer.Report(rep)
	return nil
}

// ShowCommand displays the current session
type ShowCommand struct{}

func (c *ShowCommand) Name() string        { return "show" }
func (c *ShowCommand) Aliases() []string   { return []string{"s"} }
func (c *ShowCommand) Description() string { return "Show the session and its latest round" }
func (c *ShowCommand) Usage() string       { return "show" }

func (c *ShowCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	r.displayer.Session(r.engine.Snapshot())
	return nil
}

// HistoryCommand lists every round of the session
type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Aliases() []string   { return []string{"h"} }
func (c *HistoryCommand) Description() string { return "List iterations and rounds" }
func (c *HistoryCommand) Usage() string       { return "history" }

func (c *HistoryCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	s := r.engine.Snapshot()
	if s == nil {
		fmt.Fprintln(r.out, "No active workshop.")
		return nil
	}

	for _, it := range s.Iterations {
		lock := ""
		if it.Locked() {
			lock = fmt.Sprintf(", locked to %s at round %d", it.LockedModelID, it.LockInRound)
		}
		fmt.Fprintf(r.out, "Iteration %d (%s%s)\n", it.Number, it.Status, lock)
		for _, rd := range it.Rounds {
			winner := "-"
			if w := rd.Winner(); w != nil {
				winner = w.Model
			}
			pivot := ""
			if rd.Pivot != "" {
				pivot = fmt.Sprintf(" %q", truncate(rd.Pivot, 40))
			}
			fmt.Fprintf(r.out, "  %d. %-10s %d response(s)  winner: %-20s $%.4f%s\n",
				rd.Number, rd.Type, len(rd.Responses), winner, rd.Cost(), pivot)
		}
	}
	return nil
}

// ExportCommand writes the session as Markdown
type ExportCommand struct{}

func (c *ExportCommand) Name() string        { return "export" }
func (c *ExportCommand) Aliases() []string   { return []string{"save"} }
func (c *ExportCommand) Description() string { return "Export the session as Markdown" }
func (c *ExportCommand) Usage() string       { return "export [file.md]" }

func (c *ExportCommand) Execute(_ context.Context, r *REPL, args []string) error {
	s := r.engine.Snapshot()
	if s == nil {
		return workshop.ErrNoSession
	}

	path := security.SanitizeFilename(s.PromptData.User) + ".md"
	if len(args) > 0 {
		path = args[0]
	}
	if err := security.ValidateExportPath(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(workshop.ExportMarkdown(s)), 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Fprintf(r.out, "Exported to %s\n", path)
	return nil
}

// SessionCommand manages saved workshops
type SessionCommand struct{}

func (c *SessionCommand) Name() string        { return "session" }
func (c *SessionCommand) Aliases() []string   { return []string{"sess"} }
func (c *SessionCommand) Description() string { return "List or load saved workshops" }
func (c *SessionCommand) Usage() string       { return "session [list|load <id>]" }

func (c *SessionCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return c.list(ctx, r)
	}

	subCmd := strings.ToLower(args[0])
	switch subCmd {
	case "list", "ls":
		return c.list(ctx, r)
	case "load":
		if len(args) < 2 {
			return fmt.Errorf("usage: session load <id>")
		}
		return c.load(ctx, r, args[1])
	default:
		return fmt.Errorf("unknown session command: %s", subCmd)
	}
}

func (c *SessionCommand) list(ctx context.Context, r *REPL) error {
	sessions, err := r.sessionMgr.ListSessions(ctx)
	if err != nil {
		return err
	}
	r.displayer.Sessions(sessions)
	return nil
}

func (c *SessionCommand) load(ctx context.Context, r *REPL, id string) error {
	sessions, err := r.sessionMgr.ListSessions(ctx)
	if err != nil {
		return err
	}

	var fullID string
	for _, sess := range sessions {
		if strings.HasPrefix(sess.ID, id) {
			fullID = sess.ID
			break
		}
	}
	if fullID == "" {
		return fmt.Errorf("session not found: %s", id)
	}

	s, err := r.sessionMgr.Load(ctx, fullID)
	if err != nil {
		return err
	}
	if err := r.engine.Resume(s); err != nil {
		return err
	}

	fmt.Fprintf(r.out, "Loaded workshop %s: %q\n", fullID[:min(8, len(fullID))], truncate(s.PromptData.User, 50))
	return nil
}

// ModelsCommand lists the model catalog
type ModelsCommand struct{}

func (c *ModelsCommand) Name() string        { return "models" }
func (c *ModelsCommand) Aliases() []string   { return []string{"m"} }
func (c *ModelsCommand) Description() string { return "List available models" }
func (c *ModelsCommand) Usage() string       { return "models" }

func (c *ModelsCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	for _, id := range r.registry.List() {
		info, _ := r.registry.Get(id)
		price := "price unknown"
		if info.InputPerMTok > 0 || info.OutputPerMTok > 0 {
			price = fmt.Sprintf("$%.2f/$%.2f per MTok", info.InputPerMTok, info.OutputPerMTok)
		}
		fmt.Fprintf(r.out, "  - %-40s %-10s %s\n", id, info.Provider, price)
	}
	return nil
}

// CostCommand displays cost information
type CostCommand struct{}

func (c *CostCommand) Name() string        { return "cost" }
func (c *CostCommand) Aliases() []string   { return []string{"$"} }
func (c *CostCommand) Description() string { return "View cost summary (today, week, month, total, provider, session)" }
func (c *CostCommand) Usage() string       { return "cost <today|week|month|total|provider|session>" }

func (c *CostCommand) Execute(ctx context.Context, r *REPL, args []string) error {
	if len(args) == 0 {
		return c.showSession(ctx, r)
	}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	tomorrow := today.Add(24 * time.Hour)

	subCmd := strings.ToLower(args[0])
	switch subCmd {
	case "today":
		return c.showRange(ctx, r, "Today's cost", today, tomorrow)
	case "week":
		return c.showRange(ctx, r, "Last 7 days cost", today.Add(-6*24*time.Hour), tomorrow)
	case "month":
		return c.showRange(ctx, r, "Last 30 days cost", today.Add(-29*24*time.Hour), tomorrow)
	case "total":
		return c.showTotal(ctx, r)
	case "provider":
		return c.showByProvider(ctx, r)
	case "session":
		return c.showSession(ctx, r)
	default:
		return fmt.Errorf("unknown cost command: %s\nUsage: %s", subCmd, c.Usage())
	}
}

func (c *CostCommand) showRange(ctx context.Context, r *REPL, label string, start, end time.Time) error {
	summary, err := r.sessionMgr.GetCostByDateRange(ctx, start, end)
	if err != nil {
		return err
	}
	if summary.EntryCount == 0 {
		fmt.Fprintln(r.out, "No costs recorded in that period.")
		return nil
	}
	fmt.Fprintf(r.out, "%s: $%.4f (%d call(s))\n", label, summary.TotalCost, summary.EntryCount)
	return nil
}

func (c *CostCommand) showTotal(ctx context.Context, r *REPL) error {
	summary, err := r.sessionMgr.GetTotalCost(ctx)
	if err != nil {
		return err
	}
	if summary.EntryCount == 0 {
		fmt.Fprintln(r.out, "No costs recorded yet.")
		return nil
	}
	fmt.Fprintf(r.out, "Total cost: $%.4f (%d call(s))\n", summary.TotalCost, summary.EntryCount)
	return nil
}

func (c *CostCommand) showByProvider(ctx context.Context, r *REPL) error {
	summaries, err := r.sessionMgr.GetCostByProvider(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(r.out, "No costs recorded yet.")
		return nil
	}

	fmt.Fprintf(r.out, "%-12s  %-8s  %s\n", "Provider", "Calls", "Cost")
	fmt.Fprintln(r.out, strings.Repeat("-", 35))

	var totalCost float64
	var totalCalls int
	for _, ps := range summaries {
		fmt.Fprintf(r.out, "%-12s  %-8d  $%.4f\n", ps.Provider, ps.EntryCount, ps.TotalCost)
		totalCost += ps.TotalCost
		totalCalls += ps.EntryCount
	}

	fmt.Fprintln(r.out, strings.Repeat("-", 35))
	fmt.Fprintf(r.out, "%-12s  %-8d  $%.4f\n", "Total", totalCalls, totalCost)
	return nil
}

func (c *CostCommand) showSession(ctx context.Context, r *REPL) error {
	if !r.sessionMgr.HasSession() {
		fmt.Fprintln(r.out, "No active session.")
		return nil
	}

	summary, err := r.sessionMgr.GetSessionCost(ctx)
	if err != nil {
		return err
	}
	if summary.EntryCount == 0 {
		fmt.Fprintln(r.out, "No costs in current session.")
		return nil
	}

	fmt.Fprintf(r.out, "Session cost: $%.4f (%d call(s), %d in / %d out tokens)\n",
		summary.TotalCost, summary.EntryCount, summary.InputTokens, summary.OutputTokens)
	return nil
}

// ResetCommand discards the current workshop
type ResetCommand struct{}

func (c *ResetCommand) Name() string        { return "reset" }
func (c *ResetCommand) Aliases() []string   { return nil }
func (c *ResetCommand) Description() string { return "Delete the current workshop" }
func (c *ResetCommand) Usage() string       { return "reset" }

func (c *ResetCommand) Execute(ctx context.Context, r *REPL, _ []string) error {
	if err := r.engine.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(r.out, "Workshop discarded")
	return nil
}

// HelpCommand shows available commands
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Aliases() []string   { return []string{"?"} }
func (c *HelpCommand) Description() string { return "Show available commands" }
func (c *HelpCommand) Usage() string       { return "help" }

func (c *HelpCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out)

	for _, cmd := range allCommands() {
		aliases := ""
		if len(cmd.Aliases()) > 0 {
			aliases = fmt.Sprintf(" (%s)", strings.Join(cmd.Aliases(), ", "))
		}
		fmt.Fprintf(r.out, "  %-24s%s\n", cmd.Name()+aliases, cmd.Description())
		fmt.Fprintf(r.out, "  %-24sUsage: %s\n", "", cmd.Usage())
	}

	return nil
}

// QuitCommand exits the REPL
type QuitCommand struct{}

func (c *QuitCommand) Name() string        { return "quit" }
func (c *QuitCommand) Aliases() []string   { return []string{"exit", "q"} }
func (c *QuitCommand) Description() string { return "Exit interactive mode" }
func (c *QuitCommand) Usage() string       { return "quit" }

func (c *QuitCommand) Execute(_ context.Context, r *REPL, _ []string) error {
	fmt.Fprintln(r.out, "Goodbye!")
	r.Stop()
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
