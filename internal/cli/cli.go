// Package cli implements the terminal surface: a single-shot prompt mode
// and an interactive read-eval loop rendering each turn's workspace.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/codefionn/geocopilot/internal/geomap"
	"github.com/codefionn/geocopilot/internal/orchestrator"
	"github.com/codefionn/geocopilot/internal/progress"
)

const defaultWrapWidth = 100

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// ErrQuit is returned by Execute for the /quit command.
var ErrQuit = errors.New("quit")

// CLI handles the command-line interface using the orchestrator
type CLI struct {
	orchestrator *orchestrator.Orchestrator
	in           io.Reader
	out          io.Writer
	errOut       io.Writer
	renderer     *glamour.TermRenderer
}

// Option configures a CLI.
type Option func(*CLI)

// WithIO replaces stdin, stdout and stderr.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(c *CLI) {
		c.in, c.out, c.errOut = in, out, errOut
	}
}

// New creates a CLI. Markdown is rendered with glamour when stdout is a
// terminal and printed as-is otherwise.
func New(orch *orchestrator.Orchestrator, opts ...Option) *CLI {
	c := &CLI{
		orchestrator: orch,
		in:           os.Stdin,
		out:          os.Stdout,
		errOut:       os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	if f, ok := c.out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		width := defaultWrapWidth
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 && w < width {
			width = w
		}
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
			glamour.WithPreservedNewLines(),
		)
		if err == nil {
			c.renderer = renderer
		}
	}
	return c
}

// Run executes a single prompt and prints the workspace.
func (c *CLI) Run(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("empty prompt")
	}
	res := c.orchestrator.RunTurn(orchestrator.ContextWithProgress(ctx, c.progress), prompt)
	return c.print(RenderTurn(res))
}

// REPL reads utterances line by line until EOF or /quit.
func (c *CLI) REPL(ctx context.Context) error {
	fmt.Fprintln(c.out, headerStyle.Render("geocopilot")+statusStyle.Render(" ("+c.orchestrator.ModelName()+"), /help for commands"))

	scanner := bufio.NewScanner(c.in)
	for {
		fmt.Fprint(c.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(c.out)
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Execute(ctx, scanner.Text())
		if errors.Is(err, ErrQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(c.errOut, errorStyle.Render("error: "+err.Error()))
		}
	}
}

// Execute handles one line of REPL input: a slash command or an utterance.
func (c *CLI) Execute(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.Run(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return ErrQuit
	case "/reset":
		c.orchestrator.Reset()
		fmt.Fprintln(c.out, statusStyle.Render("Session cleared."))
		return nil
	case "/map":
		return c.saveMap(arg)
	case "/help":
		fmt.Fprintln(c.out, helpText)
		return nil
	default:
		return fmt.Errorf("unknown command %s (try /help)", cmd)
	}
}

const helpText = `Commands:
  /map <file>  write the latest map as an HTML page
  /reset       clear the conversation and workspace
  /quit        leave`

func (c *CLI) saveMap(path string) error {
	if path == "" {
		return fmt.Errorf("usage: /map <file>")
	}
	snap, ok := c.orchestrator.Session().Latest()
	if !ok || snap.Map == nil {
		return fmt.Errorf("no map yet")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := geomap.RenderHTML(f, snap.Map); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintln(c.out, statusStyle.Render("Map written to "+path))
	return nil
}

func (c *CLI) progress(update progress.Update) error {
	if update.Stage == progress.StageDone {
		return nil
	}
	_, err := fmt.Fprintln(c.errOut, statusStyle.Render(update.Message))
	return err
}

func (c *CLI) print(markdown string) error {
	if c.renderer != nil {
		rendered, err := c.renderer.Render(markdown)
		if err == nil {
			markdown = rendered
		}
	}
	_, err := fmt.Fprint(c.out, markdown)
	return err
}
