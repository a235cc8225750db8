package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gregtusar/futures-cli/internal/dispatcher"
	"github.com/sirupsen/logrus"
)

// Shell reads one command at a time, dispatches it and prints the outcome.
// Commands never overlap.
type Shell struct {
	dispatcher *dispatcher.Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *logrus.Logger

	Prompt      string
	Banner      bool
	Environment string
}

func New(d *dispatcher.Dispatcher, in io.Reader, out io.Writer, logger *logrus.Logger) *Shell {
	return &Shell{
		dispatcher: d,
		in:         in,
		out:        out,
		logger:     logger,
		Prompt:     "futures> ",
		Banner:     true,
	}
}

// Run loops until quit, end of input or ctx is cancelled. Command errors
// are printed and never end the loop.
func (s *Shell) Run(ctx context.Context) error {
	lines := s.readLines(ctx)

	if s.Banner {
		s.printBanner()
	}

	for {
		fmt.Fprint(s.out, s.Prompt)
		line, ok := s.next(ctx, lines)
		if !ok {
			fmt.Fprintln(s.out, "\nGoodbye!")
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		verb := strings.ToLower(fields[0])
		args := fields[1:]

		switch verb {
		case "quit", "exit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case "help", "?":
			s.printHelp()
			continue
		}

		cmd, found := dispatcher.Lookup(verb)
		if !found {
			fmt.Fprintf(s.out, "Unknown command %q. Type 'help' to list commands.\n", verb)
			continue
		}

		if len(args) == 0 && len(cmd.Params) > 0 {
			args, ok = s.promptArgs(ctx, lines, cmd)
			if !ok {
				fmt.Fprintln(s.out, "\nGoodbye!")
				return nil
			}
		}

		res, err := s.dispatcher.Dispatch(ctx, cmd.Name, args, s.out)
		if err != nil {
			fmt.Fprintf(s.out, "Error: %v\n", err)
			continue
		}
		res.Render(s.out)
	}
}

// promptArgs asks for each parameter in turn. A blank answer ends the
// prompting so optional trailing parameters can be skipped.
func (s *Shell) promptArgs(ctx context.Context, lines <-chan string, cmd dispatcher.Command) ([]string, bool) {
	args := make([]string, 0, len(cmd.Params))
	for _, p := range cmd.Params {
		fmt.Fprintf(s.out, "%s: ", p.Prompt)
		line, ok := s.next(ctx, lines)
		if !ok {
			return nil, false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		args = append(args, line)
	}
	return args, true
}

func (s *Shell) next(ctx context.Context, lines <-chan string) (string, bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok := <-lines:
		return line, ok
	}
}

// readLines feeds input lines to the loop so an interrupt can end it while
// a read is pending.
func (s *Shell) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.WithError(err).Error("Failed to read input")
		}
	}()
	return lines
}

func (s *Shell) printBanner() {
	title := "=== Binance Futures Trading CLI ==="
	if s.Environment != "" {
		title = fmt.Sprintf("=== Binance Futures Trading CLI (%s) ===", s.Environment)
	}
	fmt.Fprintln(s.out, title)
	s.printHelp()
	fmt.Fprintln(s.out, strings.Repeat("=", len(title)))
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, "Available commands:")
	for _, c := range dispatcher.Commands() {
		name := c.Name
		if len(c.Aliases) > 0 {
			name += " (" + strings.Join(c.Aliases, ", ") + ")"
		}
		fmt.Fprintf(s.out, "  %-18s %-48s %s\n", name, c.Usage(), c.Summary)
	}
	fmt.Fprintf(s.out, "  %-18s %-48s %s\n", "help", "", "Show this list")
	fmt.Fprintf(s.out, "  %-18s %-48s %s\n", "quit (exit)", "", "Exit")
}
