// Package repl is the interactive copilot shell. Plain text is a turn;
// lines starting with a slash are commands.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/gates"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/types"
)

// Copilot is the part of the approval gate the shell drives
type Copilot interface {
	Run(ctx context.Context, req gates.Request) (*gates.Result, error)
	Resolve(ctx context.Context, id string, decision types.Decision, reviewer, reason string) (*gates.Result, error)
	Pending(ctx context.Context) ([]*types.PendingApproval, error)
}

// errExit ends the loop
var errExit = errors.New("exit")

// REPL represents the interactive shell
type REPL struct {
	copilot     Copilot
	context     riskctx.Provider
	hedgeLimits []compliance.LimitEntry
	events      events.EventStore
	actor       string
	out         io.Writer
	historyFile string

	ctx       context.Context
	lastTrace []types.ThinkingStep
	commands  map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Copilot     Copilot
	Context     riskctx.Provider
	HedgeLimits []compliance.LimitEntry
	Events      events.EventStore // Optional, enables /activity
	Actor       string            // Reviewer name for /approve and /reject
	Out         io.Writer         // Defaults to os.Stdout
	HistoryFile string
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg == nil || cfg.Copilot == nil {
		return nil, fmt.Errorf("copilot is required")
	}
	if cfg.Context == nil {
		return nil, fmt.Errorf("risk context provider is required")
	}

	r := &REPL{
		copilot:     cfg.Copilot,
		context:     cfg.Context,
		hedgeLimits: cfg.HedgeLimits,
		events:      cfg.Events,
		actor:       cfg.Actor,
		out:         cfg.Out,
		historyFile: cfg.HistoryFile,
		ctx:         context.Background(),
		commands:    make(map[string]CommandHandler),
	}
	if r.actor == "" {
		r.actor = "user"
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	r.registerCommands()
	return r, nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["/help"] = r.cmdHelp
	r.commands["/?"] = r.cmdHelp
	r.commands["/exit"] = r.cmdExit
	r.commands["/quit"] = r.cmdExit
	r.commands["/pending"] = r.cmdPending
	r.commands["/approve"] = r.cmdApprove
	r.commands["/reject"] = r.cmdReject
	r.commands["/limits"] = r.cmdLimits
	r.commands["/context"] = r.cmdContext
	r.commands["/trace"] = r.cmdTrace
	r.commands["/activity"] = r.cmdActivity
}

func (r *REPL) completer() *readline.PrefixCompleter {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	items := make([]readline.PrefixCompleterInterface, 0, len(names))
	for _, name := range names {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            color.New(color.FgCyan).Sprint("riskpilot> "),
		HistoryFile:       r.historyFile,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "/exit",
		HistorySearchFold: true,
		Stdout:            r.out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	r.printWelcome()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if err := r.ProcessInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// ProcessInput handles one line: a slash command or a copilot turn
func (r *REPL) ProcessInput(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, "/") {
		parts := strings.Fields(line)
		handler, ok := r.commands[strings.ToLower(parts[0])]
		if !ok {
			return fmt.Errorf("unknown command %s (try /help)", parts[0])
		}
		return handler(parts[1:])
	}
	return r.ask(line)
}

// ask runs one turn, streaming steps as they happen
func (r *REPL) ask(text string) error {
	fmt.Fprintln(r.out)
	res, err := r.copilot.Run(r.ctx, gates.Request{
		Text:    text,
		Context: r.context.Current(),
		Actor:   r.actor,
		OnStep:  func(step types.ThinkingStep) { PrintStep(r.out, step) },
	})
	if err != nil {
		return err
	}
	r.lastTrace = res.Trace

	fmt.Fprintf(r.out, "\n%s\n\n", res.Response)
	if res.RequiresApproval && res.Pending != nil {
		fmt.Fprintf(r.out, "%s /approve %s  or  /reject %s\n\n",
			yellow("Awaiting approval:"), shortID(res.Pending.ID), shortID(res.Pending.ID))
	}
	return nil
}

func (r *REPL) printWelcome() {
	fmt.Fprintf(r.out, "\n%s\n", cyan("riskpilot - pension risk copilot"))
	rc := r.context.Current()
	if rc != nil {
		fmt.Fprintf(r.out, "Funded status %s, surplus %s\n",
			riskctx.FormatPct(rc.FundedStatus, 1), riskctx.FormatBillions(rc.Surplus))
	}
	fmt.Fprintln(r.out, "Ask a question, or type /help for commands")
	fmt.Fprintln(r.out)
}

func (r *REPL) cmdHelp(args []string) error {
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Commands"))
	commands := []struct {
		name string
		desc string
	}{
		{"/pending", "List approvals awaiting a reviewer"},
		{"/approve <id> [reason]", "Apply the recommended ratio"},
		{"/reject <id> [reason]", "Keep the current configuration"},
		{"/limits", "Show the limit monitor and hedge limits"},
		{"/context", "Show funded status, durations and allocation"},
		{"/trace", "Replay the reasoning of the last turn"},
		{"/activity [n]", "Show the most recent audit events"},
		{"/help, /?", "Show this help message"},
		{"/exit, /quit", "Exit the shell"},
	}
	for _, c := range commands {
		fmt.Fprintf(r.out, "  %-26s %s\n", green(c.name), c.desc)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Examples:")
	fmt.Fprintln(r.out, "  What happens if rates rise 100bp?")
	fmt.Fprintln(r.out, "  Set the FX hedge ratio to 95%")
	fmt.Fprintln(r.out, "  Are we within our allocation limits?")
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdExit(args []string) error {
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}

func (r *REPL) cmdPending(args []string) error {
	list, err := r.copilot.Pending(r.ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending approvals: %w", err)
	}
	fmt.Fprintln(r.out)
	PrintApprovals(r.out, list)
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdApprove(args []string) error {
	return r.resolve("approve", types.DecisionApproved, args)
}

func (r *REPL) cmdReject(args []string) error {
	return r.resolve("reject", types.DecisionRejected, args)
}

func (r *REPL) resolve(command string, decision types.Decision, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /%s <id> [reason]", command)
	}
	id, err := r.matchPending(args[0])
	if err != nil {
		return err
	}
	res, err := r.copilot.Resolve(r.ctx, id, decision, r.actor, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	r.lastTrace = res.Trace
	fmt.Fprintln(r.out)
	PrintStep(r.out, res.Trace[len(res.Trace)-1])
	fmt.Fprintf(r.out, "\n%s\n\n", res.Response)
	return nil
}

// matchPending expands a unique prefix of a pending approval id
func (r *REPL) matchPending(prefix string) (string, error) {
	list, err := r.copilot.Pending(r.ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list pending approvals: %w", err)
	}
	var matches []string
	for _, p := range list {
		if p.ID == prefix {
			return p.ID, nil
		}
		if strings.HasPrefix(p.ID, prefix) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		// Let the gate report not-found or already-resolved
		return prefix, nil
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("ambiguous approval id %q matches %d approvals", prefix, len(matches))
}

func (r *REPL) cmdLimits(args []string) error {
	rc := r.context.Current()
	if rc == nil {
		return fmt.Errorf("no risk context loaded")
	}
	fmt.Fprintln(r.out)
	PrintLimits(r.out, rc, r.hedgeLimits)
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdContext(args []string) error {
	rc := r.context.Current()
	if rc == nil {
		return fmt.Errorf("no risk context loaded")
	}
	fmt.Fprintln(r.out)
	PrintContext(r.out, rc)
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdTrace(args []string) error {
	if len(r.lastTrace) == 0 {
		fmt.Fprintln(r.out, gray("No turn yet"))
		return nil
	}
	fmt.Fprintln(r.out)
	PrintTrace(r.out, r.lastTrace)
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) cmdActivity(args []string) error {
	if r.events == nil {
		return fmt.Errorf("activity requires storage")
	}
	limit := 20
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return fmt.Errorf("invalid count %q", args[0])
		}
		limit = n
	}
	recent, err := r.events.GetRecentEvents(r.ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to load activity: %w", err)
	}
	// Newest first from the store; print oldest first
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	fmt.Fprintln(r.out)
	PrintEvents(r.out, recent)
	fmt.Fprintln(r.out)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
