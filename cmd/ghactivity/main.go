// Command ghactivity collects a GitHub user's public activity across
// the REST, search and GraphQL APIs and writes the merged result as
// JSON.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codetrail/ghactivity/pkg/cache"
	"github.com/codetrail/ghactivity/pkg/collect"
	"github.com/codetrail/ghactivity/pkg/ghapi"
	"github.com/codetrail/ghactivity/pkg/logging"
	"github.com/codetrail/ghactivity/pkg/metrics"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ghactivity",
		Short:         "Collect GitHub user activity",
		Long:          "ghactivity gathers a user's public GitHub activity from the event feed, the search API and the contribution graph, merges the sources and prints one JSON document.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().Bool("pretty", false, "human-readable log output")

	viper.SetEnvPrefix("GHACTIVITY")
	viper.AutomaticEnv()

	root.AddCommand(newCollectCmd())
	return root
}

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect <login>",
		Short: "Collect one user's activity",
		Args:  cobra.ExactArgs(1),
		RunE:  runCollect,
	}

	cmd.Flags().String("token", "", "GitHub access token (env GITHUB_TOKEN); without one the contribution graph is skipped")
	cmd.Flags().String("since", "", "window start, YYYY-MM-DD")
	cmd.Flags().String("until", "", "window end, YYYY-MM-DD")
	cmd.Flags().Int("days", 0, "window length in days ending now; ignored when --since is set")
	cmd.Flags().String("mode", string(collect.ModeDeep), "collection mode: quick or deep")
	cmd.Flags().Int("max-repos", collect.DefaultMaxRepos, "repositories to mine for commits in deep mode")
	cmd.Flags().Bool("include-scrape", false, "mark the result for downstream profile scraping")
	cmd.Flags().String("redis-addr", "", "Redis address for the conditional-request cache (env GHACTIVITY_REDIS_ADDR)")
	cmd.Flags().String("output", "", "write the result to this file instead of stdout")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while collecting")

	viper.BindPFlag("token", cmd.Flags().Lookup("token"))
	viper.BindEnv("token", "GITHUB_TOKEN", "GHACTIVITY_TOKEN")
	viper.BindPFlag("redis_addr", cmd.Flags().Lookup("redis-addr"))

	return cmd
}

func runCollect(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	pretty, _ := cmd.Flags().GetBool("pretty")
	logging.Setup(logging.Config{Level: logging.LogLevel(level), Pretty: pretty, Output: os.Stderr})
	logger := logging.NewLogger("cli")

	sinceStr, _ := cmd.Flags().GetString("since")
	untilStr, _ := cmd.Flags().GetString("until")
	days, _ := cmd.Flags().GetInt("days")
	since, until, err := collectWindow(sinceStr, untilStr, days, time.Now())
	if err != nil {
		return err
	}

	mode, _ := cmd.Flags().GetString("mode")
	if mode != string(collect.ModeQuick) && mode != string(collect.ModeDeep) {
		return fmt.Errorf("unknown mode %q", mode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := ghapi.DefaultConfig(viper.GetString("token"))
	if addr := viper.GetString("redis_addr"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", addr, err)
		}
		defer rdb.Close()
		cfg.Cache = cache.NewManager(rdb, cache.DefaultRetention)
		logger.Info().Str("addr", addr).Msg("response cache enabled")
	}

	client, err := ghapi.New(cfg)
	if err != nil {
		return err
	}
	collector, err := collect.New(collect.Config{Client: client})
	if err != nil {
		return err
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	maxRepos, _ := cmd.Flags().GetInt("max-repos")
	includeScrape, _ := cmd.Flags().GetBool("include-scrape")
	result, err := collector.Collect(ctx, args[0], collect.Options{
		Since:         since,
		Until:         until,
		Mode:          collect.Mode(mode),
		MaxRepos:      maxRepos,
		IncludeScrape: includeScrape,
	})
	if result != nil {
		output, _ := cmd.Flags().GetString("output")
		if werr := writeResult(result, output, cmd.OutOrStdout()); werr != nil && err == nil {
			err = werr
		}
		for _, w := range result.Warnings {
			logger.Warn().Str("source", string(w.Source)).Str("code", w.Code).Msg(w.Message)
		}
	}
	return err
}

// collectWindow resolves the since/until flags. --since/--until take
// date strings; --days counts back from now. Everything unset leaves
// the collector's defaults in charge.
func collectWindow(sinceStr, untilStr string, days int, now time.Time) (since, until time.Time, err error) {
	if untilStr != "" {
		until, err = time.Parse("2006-01-02", untilStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --until: %w", err)
		}
	}
	if sinceStr != "" {
		since, err = time.Parse("2006-01-02", sinceStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse --since: %w", err)
		}
	} else if days > 0 {
		end := until
		if end.IsZero() {
			end = now
		}
		since = end.AddDate(0, 0, -days)
	}
	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return time.Time{}, time.Time{}, fmt.Errorf("--until %s precedes --since %s", untilStr, sinceStr)
	}
	return since, until, nil
}

func writeResult(result any, path string, stdout io.Writer) error {
	var out io.Writer = stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
