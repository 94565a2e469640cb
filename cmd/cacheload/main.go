// Command cacheload warms up a cachecore-backed cache and reports
// throughput: point it at a config file and a key range, and it fills the
// cache concurrently through cache.WarmUpParallel, timing the run the way
// tk-bench times ls/mutation commands.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/calvinalkan/cachecore/internal/config"
	"github.com/calvinalkan/cachecore/internal/wiring"
	"github.com/calvinalkan/cachecore/pkg/cache"
)

// loadConfig holds the flag-derived run parameters, mirroring tk-bench's
// Config-struct-plus-flag.Var approach.
type loadConfig struct {
	configPath  string
	keyPrefix   string
	count       int
	valueSize   int
	concurrency int
	ttl         time.Duration
	report      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	logger := slog.New(slog.NewTextHandler(errOut, nil))

	fs := flag.NewFlagSet("cacheload", flag.ContinueOnError)
	fs.SetOutput(errOut)

	lc := loadConfig{}
	fs.StringVar(&lc.configPath, "config", "", "path to .cachecore.json")
	fs.StringVar(&lc.keyPrefix, "prefix", "cacheload", "key prefix for generated load")
	fs.IntVar(&lc.count, "count", 10_000, "number of keys to warm up")
	fs.IntVar(&lc.valueSize, "value-size", 256, "synthetic value size in bytes")
	fs.IntVar(&lc.concurrency, "concurrency", 32, "bounded warm-up concurrency, 0 = unbounded")
	fs.DurationVar(&lc.ttl, "ttl", time.Minute, "TTL applied to every warmed entry")
	fs.BoolVar(&lc.report, "report", false, "print a per-phase timing report instead of a single line")

	fs.Usage = func() {
		fmt.Fprint(errOut, "Usage: cacheload [flags]\n\n")
		fmt.Fprint(errOut, "Warms up a cachecore-backed cache with synthetic keys and reports throughput.\n\n")
		fmt.Fprint(errOut, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	wd, err := os.Getwd()
	if err != nil {
		logger.Error("cacheload", "err", err)
		return 1
	}
	cfg, err := config.Load(wd, lc.configPath)
	if err != nil {
		logger.Error("cacheload", "err", err)
		return 1
	}

	m, closeFn, err := wiring.BuildManager(cfg)
	if err != nil {
		logger.Error("cacheload", "err", err)
		return 1
	}
	defer closeFn()

	if err := warmUp(context.Background(), m, lc, out); err != nil {
		logger.Error("cacheload", "err", err)
		return 1
	}

	return 0
}

// warmUp builds lc.count synthetic items and fills the cache through
// cache.WarmUpParallel, printing a throughput line (or a phase report).
func warmUp(ctx context.Context, m *cache.Manager, lc loadConfig, out *os.File) error {
	payload := strings.Repeat("x", lc.valueSize)

	items := make([]cache.WarmUpItem[string], lc.count)
	for i := range items {
		key := lc.keyPrefix + ":" + strconv.Itoa(i)
		items[i] = cache.WarmUpItem[string]{
			Key: key,
			Produce: func(context.Context) (string, error) {
				return payload, nil
			},
			Opts: []cache.Option{cache.WithTTL(lc.ttl)},
		}
	}

	start := time.Now()
	if err := cache.WarmUpParallel(ctx, m, items, lc.concurrency); err != nil {
		return fmt.Errorf("cacheload: warm-up failed after %s: %w", time.Since(start), err)
	}
	elapsed := time.Since(start)

	if lc.report {
		fmt.Fprintf(out, "keys: %d\n", lc.count)
		fmt.Fprintf(out, "concurrency: %d\n", lc.concurrency)
		fmt.Fprintf(out, "elapsed: %s\n", elapsed)
		fmt.Fprintf(out, "throughput: %.0f keys/s\n", float64(lc.count)/elapsed.Seconds())
		return nil
	}

	fmt.Fprintf(out, "warmed %d keys in %s (%.0f keys/s)\n", lc.count, elapsed, float64(lc.count)/elapsed.Seconds())
	return nil
}
