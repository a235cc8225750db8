package dispatcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gregtusar/futures-cli/pkg/binance"
	"github.com/gregtusar/futures-cli/pkg/models"
	"github.com/sirupsen/logrus"
)

// Param describes one positional argument of a command.
type Param struct {
	Name     string
	Prompt   string
	Optional bool
}

// Command is one entry of the dispatch table.
type Command struct {
	Name    string
	Aliases []string
	Summary string
	Params  []Param

	run func(ctx context.Context, d *Dispatcher, args []string, out io.Writer) (Result, error)
}

// Usage renders the argument list, optional arguments in brackets.
func (c Command) Usage() string {
	parts := make([]string, 0, len(c.Params))
	for _, p := range c.Params {
		if p.Optional {
			parts = append(parts, "["+p.Name+"]")
		} else {
			parts = append(parts, "<"+p.Name+">")
		}
	}
	return strings.Join(parts, " ")
}

// RequiredArgs is the number of non-optional parameters.
func (c Command) RequiredArgs() int {
	n := 0
	for _, p := range c.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

func (c Command) checkArgs(args []string) error {
	if len(args) < c.RequiredArgs() {
		return models.NewValidationError("missing arguments, usage: %s %s", c.Name, c.Usage())
	}
	if len(args) > len(c.Params) {
		return models.NewValidationError("too many arguments, usage: %s %s", c.Name, c.Usage())
	}
	return nil
}

// Dispatcher maps a command and its arguments to one exchange call. It keeps
// no state between commands.
type Dispatcher struct {
	client     binance.Client
	logger     *logrus.Logger
	watchCount int
}

func New(client binance.Client, logger *logrus.Logger, watchCount int) *Dispatcher {
	if watchCount <= 0 {
		watchCount = 10
	}
	return &Dispatcher{
		client:     client,
		logger:     logger,
		watchCount: watchCount,
	}
}

// Commands returns the dispatch table in display order.
func Commands() []Command {
	return commands
}

// Lookup finds a command by name or alias, ignoring case.
func Lookup(name string) (Command, bool) {
	name = strings.ToLower(name)
	for _, c := range commands {
		if c.Name == name {
			return c, true
		}
		for _, a := range c.Aliases {
			if a == name {
				return c, true
			}
		}
	}
	return Command{}, false
}

// Dispatch validates args for the named command and, if they are valid,
// performs exactly one exchange call. Streaming output goes to out. Every
// outcome is written to the log.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args []string, out io.Writer) (Result, error) {
	cmd, ok := Lookup(name)
	if !ok {
		err := models.NewValidationError("unknown command %q", name)
		d.record(name, args, nil, err)
		return nil, err
	}

	if err := cmd.checkArgs(args); err != nil {
		d.record(cmd.Name, args, nil, err)
		return nil, err
	}

	res, err := cmd.run(ctx, d, args, out)
	d.record(cmd.Name, args, res, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (d *Dispatcher) record(action string, args []string, res Result, err error) {
	entry := d.logger.WithFields(logrus.Fields{
		"action": action,
		"args":   strings.Join(args, " "),
	})

	if err == nil {
		entry.WithFields(res.Fields()).WithField("outcome", "ok").Info("Command succeeded")
		return
	}

	kind := models.KindOf(err)
	entry = entry.WithError(err).WithFields(logrus.Fields{
		"outcome":    "error",
		"error_kind": string(kind),
	})
	if kind == models.KindValidation {
		entry.Warn("Command rejected")
		return
	}
	entry.Error("Command failed")
}

func wrapf(err error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}
