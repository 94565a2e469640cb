package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/cachecore/internal/config"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

func commands(cfg config.Config) []*command {
	return []*command{
		getCmd(cfg),
		setCmd(cfg),
		invalidateCmd(cfg),
		statsCmd(cfg),
	}
}

func getCmd(cfg config.Config) *command {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	return &command{
		flags: fs,
		usage: "get <key>",
		short: "Read a key and print its value",
		exec: func(ctx context.Context, out, _ io.Writer, args []string) error {
			if len(args) != 1 {
				return errors.New("get requires exactly one key")
			}
			m, closeFn, err := buildManager(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := cache.Get[string](ctx, m, args[0])
			if err != nil {
				return err
			}
			switch {
			case res.Status == cache.StatusMiss:
				fmt.Fprintln(out, "(miss)")
			case res.Status == cache.StatusNegativeHit:
				fmt.Fprintln(out, "(negative hit: known absent)")
			default:
				v, _ := res.Value()
				fmt.Fprintf(out, "%s\t%s\n", res.Status, v)
			}
			return nil
		},
	}
}

func setCmd(cfg config.Config) *command {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	ttl := fs.Duration("ttl", 0, "entry TTL (0 = no expiry)")
	swr := fs.Duration("swr", 0, "stale-while-revalidate window")
	tags := fs.StringSlice("tags", nil, "comma-separated tags")
	dependsOn := fs.StringSlice("depends-on", nil, "comma-separated parent keys")

	return &command{
		flags: fs,
		usage: "set <key> <value> [flags]",
		short: "Write a key",
		exec: func(ctx context.Context, _, _ io.Writer, args []string) error {
			if len(args) != 2 {
				return errors.New("set requires exactly a key and a value")
			}
			m, closeFn, err := buildManager(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			opts := []cache.Option{}
			if *ttl > 0 {
				opts = append(opts, cache.WithTTL(*ttl))
			}
			if *swr > 0 {
				opts = append(opts, cache.WithSWR(*swr))
			}
			if len(*tags) > 0 {
				opts = append(opts, cache.WithTags(*tags...))
			}
			if len(*dependsOn) > 0 {
				opts = append(opts, cache.WithDependsOn(*dependsOn...))
			}
			return cache.Set(ctx, m, args[0], args[1], opts...)
		},
	}
}

func invalidateCmd(cfg config.Config) *command {
	fs := flag.NewFlagSet("invalidate", flag.ContinueOnError)
	return &command{
		flags: fs,
		usage: "invalidate <key>",
		short: "Delete a key and cascade to its dependents",
		exec: func(ctx context.Context, out, _ io.Writer, args []string) error {
			if len(args) != 1 {
				return errors.New("invalidate requires exactly one key")
			}
			m, closeFn, err := buildManager(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := m.Invalidate(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "invalidated %d key(s)\n", n)
			return nil
		},
	}
}

func statsCmd(cfg config.Config) *command {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	return &command{
		flags: fs,
		usage: "stats",
		short: "Print backend stats",
		exec: func(ctx context.Context, out, _ io.Writer, _ []string) error {
			m, closeFn, err := buildManager(cfg)
			if err != nil {
				return err
			}
			defer closeFn()

			statsCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			s, err := m.Backend().Stats(statsCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "hits=%d misses=%d evictions=%d len=%d bytes=%d\n",
				s.Hits, s.Misses, s.Evictions, s.Len, s.Bytes)
			return nil
		},
	}
}
