// Command cachectl inspects and manipulates a cachecore-backed cache from
// the shell: get/set/invalidate/stats against whichever backend the config
// file points at.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cachecore/internal/config"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	logger := slog.New(slog.NewTextHandler(errOut, nil))

	global := flag.NewFlagSet("cachectl", flag.ContinueOnError)
	global.SetInterspersed(false)
	configPath := global.StringP("config", "c", "", "path to .cachecore.json")
	_ = global.Parse(args)

	rest := global.Args()
	if len(rest) == 0 {
		printUsage(errOut)
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		logger.Error("cachectl", "err", err)
		return 1
	}
	cfg, err := config.Load(wd, *configPath)
	if err != nil {
		logger.Error("cachectl", "err", err)
		return 1
	}

	cmds := commands(cfg)
	name, cmdArgs := rest[0], rest[1:]
	for _, c := range cmds {
		if c.name() == name {
			return c.run(context.Background(), out, errOut, logger, cmdArgs)
		}
	}

	logger.Error("unknown command", "name", name)
	printUsage(errOut)
	return 1
}

func printUsage(out *os.File) {
	fmt.Fprintln(out, "Usage: cachectl [--config path] <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  get <key>              Read a key and print its value")
	fmt.Fprintln(out, "  set <key> <value>      Write a key")
	fmt.Fprintln(out, "  invalidate <key>       Delete a key (and its dependents)")
	fmt.Fprintln(out, "  stats                  Print backend stats")
}
