package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dschwags/Prompt-Lab-sub000/internal/display"
	"github.com/dschwags/Prompt-Lab-sub000/internal/session"
	"github.com/dschwags/Prompt-Lab-sub000/internal/workshop"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

type REPL struct {
	in             io.Reader
	out            io.Writer
	err            io.Writer
	engine         *workshop.Engine
	synthesizer    *workshop.Synthesizer
	registry       *models.ModelRegistry
	sessionMgr     *session.Manager
	displayer      *display.Displayer
	synthesisModel string
	commands       map[string]Command
	running        bool
}

type Config struct {
	In             io.Reader
	Out            io.Writer
	Err            io.Writer
	Engine         *workshop.Engine
	Synthesizer    *workshop.Synthesizer
	Registry       *models.ModelRegistry
	SessionMgr     *session.Manager
	Displayer      *display.Displayer
	SynthesisModel string
}

func New(cfg *Config) *REPL {
	r := &REPL{
		in:             cfg.In,
		out:            cfg.Out,
		err:            cfg.Err,
		engine:         cfg.Engine,
		synthesizer:    cfg.Synthesizer,
		registry:       cfg.Registry,
		sessionMgr:     cfg.SessionMgr,
		displayer:      cfg.Displayer,
		synthesisModel: cfg.SynthesisModel,
		commands:       make(map[string]Command),
	}
	r.registerCommands()
	return r
}

func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.printWelcome()

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for r.running {
		r.printPrompt()
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.err, "Error: %v\n", err)
		}
	}

	return scanner.Err()
}

func (r *REPL) execute(ctx context.Context, line string) error {
	parts := parseCommand(line)
	if len(parts) == 0 {
		return nil
	}

	cmdName := strings.ToLower(parts[0])
	args := parts[1:]

	cmd, ok := r.commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmdName)
	}

	return cmd.Execute(ctx, r, args)
}

func (r *REPL) Stop() {
	r.running = false
}

func (r *REPL) printWelcome() {
	fmt.Fprintln(r.out, "promptlab interactive workshop")
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'quit' to exit.")
	fmt.Fprintln(r.out)
}

func (r *REPL) printPrompt() {
	s := r.engine.Snapshot()
	if s == nil {
		fmt.Fprint(r.out, "promptlab> ")
		return
	}
	it := s.ActiveIteration()
	lock := ""
	if it.Locked() {
		lock = " · locked " + it.LockedModelID
	}
	fmt.Fprintf(r.out, "promptlab [it %d · round %d%s]> ", it.Number, len(it.Rounds), lock)
}

// resolve expands a response id prefix against the current session.
func (r *REPL) resolve(ref string) (string, error) {
	return workshop.ResolveResponseID(r.engine.Snapshot(), ref)
}

func parseCommand(line string) []string {
	var parts []string
	var current strings.Builder
	inQuotes := false
	quoteChar := rune(0)

	for _, ch := range line {
		switch {
		case ch == '"' || ch == '\'':
			if inQuotes && ch == quoteChar {
				inQuotes = false
				quoteChar = 0
			} else if !inQuotes {
				inQuotes = true
				quoteChar = ch
			} else {
				current.WriteRune(ch)
			}
		case ch == ' ' && !inQuotes:
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(ch)
		}
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
