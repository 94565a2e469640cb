package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	flag "github.com/spf13/pflag"
)

// command is a single subcommand: a flag set, usage text, and the function
// that executes it.
type command struct {
	flags *flag.FlagSet
	usage string
	short string
	exec  func(ctx context.Context, out, errOut io.Writer, args []string) error
}

func (c *command) name() string {
	name, _, _ := strings.Cut(c.usage, " ")
	return name
}

func (c *command) printHelp(out io.Writer) {
	fmt.Fprintln(out, "Usage: cachectl", c.usage)
	fmt.Fprintln(out)
	fmt.Fprintln(out, c.short)
	if c.flags != nil && c.flags.HasFlags() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Flags:")
		c.flags.SetOutput(out)
		c.flags.PrintDefaults()
	}
}

func (c *command) run(ctx context.Context, out, errOut io.Writer, logger *slog.Logger, args []string) int {
	c.flags.SetOutput(io.Discard)
	if err := c.flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.printHelp(out)
			return 0
		}
		logger.Error("parse flags", "command", c.name(), "err", err)
		c.printHelp(errOut)
		return 1
	}

	if err := c.exec(ctx, out, errOut, c.flags.Args()); err != nil {
		logger.Error("command failed", "command", c.name(), "err", err)
		return 1
	}
	return 0
}
