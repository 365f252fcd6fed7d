package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"nimbus/internal/agent"
	"nimbus/internal/llm"

	"github.com/chzyer/readline"
)

// LineReader reads one line of user input. It returns io.EOF at end of
// input and readline.ErrInterrupt on Ctrl-C.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// NewReadlineReader creates a terminal line reader with history
func NewReadlineReader(prompt, historyFile string) (LineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open terminal: %w", err)
	}
	return rl, nil
}

// Console is the interactive question loop
type Console struct {
	reader LineReader
	agent  agent.Agent
	out    *Writer
}

func NewConsole(reader LineReader, ag agent.Agent, out *Writer) *Console {
	if out == nil {
		out = NewWriter(nil)
	}
	return &Console{
		reader: reader,
		agent:  ag,
		out:    out,
	}
}

// IsQuitCommand reports whether line asks to leave the console
func IsQuitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit", "q":
		return true
	}
	return false
}

// Run reads questions until a quit command, EOF, an interrupt at the
// prompt, or ctx is done. A failed run prints "no answer" and the loop
// continues.
func (c *Console) Run(ctx context.Context) error {
	c.out.WriteColoredLine("🌤️  Weather Agent - ask about the weather anywhere. Type 'quit' to exit.", ColorBold)

	for {
		if ctx.Err() != nil {
			c.out.WriteLine("Goodbye!")
			return nil
		}

		line, err := c.reader.Readline()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				c.out.WriteLine("Goodbye!")
				return nil
			}
			return err
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}
		if IsQuitCommand(query) {
			c.out.WriteLine("Goodbye!")
			return nil
		}

		c.ask(ctx, query)
	}
}

// ask runs one query; Ctrl-C while it runs cancels only this query
func (c *Console) ask(ctx context.Context, query string) {
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if _, err := c.agent.Run(runCtx, query); err != nil {
		c.out.WriteColoredLine("❌ No answer: "+Describe(err), ColorRed)
	}
}

// Describe turns a run error into a short user-facing reason
func Describe(err error) string {
	switch {
	case errors.Is(err, agent.ErrMaxIterations):
		return "the agent did not reach a final answer in time"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case llm.IsRateLimit(err):
		return "rate limit exceeded, please wait a minute and try again"
	default:
		return err.Error()
	}
}

// promptSetter is implemented by readers whose prompt can change between
// reads, such as *readline.Instance
type promptSetter interface {
	SetPrompt(prompt string)
}

// lineSource adapts a LineReader to io.Reader so prompts outside the
// console loop (tool confirmation) share the terminal
type lineSource struct {
	reader LineReader
	prompt string
	buf    []byte
}

// NewLineSource returns an io.Reader yielding one input line per fill.
// The reader's prompt is cleared while a line is read and then reset to
// prompt, so the caller's own question is the only one shown.
func NewLineSource(reader LineReader, prompt string) io.Reader {
	return &lineSource{reader: reader, prompt: prompt}
}

func (s *lineSource) Read(p []byte) (int, error) {
	if len(s.buf) == 0 {
		line, err := s.readLine()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				return 0, io.EOF
			}
			return 0, err
		}
		s.buf = []byte(line + "\n")
	}
	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *lineSource) readLine() (string, error) {
	ps, ok := s.reader.(promptSetter)
	if !ok {
		return s.reader.Readline()
	}
	ps.SetPrompt("")
	defer ps.SetPrompt(s.prompt)
	return s.reader.Readline()
}
