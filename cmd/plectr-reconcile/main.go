package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

var (
	configFile  string
	serverURL   string
	token       string
	logLevel    string
	quiet       bool
	excludes    []string
	concurrency int
	profile     string
	region      string
)

func main() {
	rootCmd := newRootCmd()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plectr-reconcile",
		Short: "Reconcile a divergent commit with the current repository head",
		Long: `plectr-reconcile compares a divergent commit with the repository head,
lists conflicting and added files, and submits an explicit per-file merge.`,
		Version:      fmt.Sprintf("%s (commit: %s, built at: %s by %s)", version, commit, date, builtBy),
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Path to a TOML config file")
	flags.StringVar(&serverURL, "server", "", "Commit service base URL")
	flags.StringVar(&token, "token", "", "Commit service bearer token")
	flags.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVar(&quiet, "quiet", false, "Suppress non-error output")
	flags.StringSliceVar(&excludes, "exclude", nil, "Exclude patterns for working tree scans (multiple allowed)")
	flags.IntVar(&concurrency, "concurrency", 0, "Number of concurrent blob fetches")
	flags.StringVar(&profile, "profile", "", "AWS profile to use for the s3 blob backend")
	flags.StringVar(&region, "region", "", "AWS region (uses default if not specified)")

	rootCmd.AddCommand(
		newPlanCmd(),
		newDiffCmd(),
		newMergeCmd(),
		newStatusCmd(),
	)
	return rootCmd
}

// overrides collects the flags the user actually set, keyed like the config.
func overrides(cmd *cobra.Command) map[string]interface{} {
	out := map[string]interface{}{}
	flags := cmd.Flags()
	set := func(flag, key string, value interface{}) {
		if flags.Changed(flag) {
			out[key] = value
		}
	}
	set("server", "server.url", serverURL)
	set("token", "server.token", token)
	set("log-level", "log.level", logLevel)
	set("exclude", "excludes", excludes)
	set("concurrency", "concurrency", concurrency)
	set("profile", "blobs.profile", profile)
	set("region", "blobs.region", region)
	return out
}
