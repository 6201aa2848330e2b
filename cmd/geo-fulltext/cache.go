// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-fulltext/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the cache tiers",
	Long: `Cache manages the hot (redis), warm (parsed content), and cold (SOFT
file) tiers. Destructive operations default to a dry run; pass --execute
to apply them.

  --stats          print tier statistics as JSON
  --health-check   probe every tier; exits 1 when degraded
  --clear-redis    delete hot-tier keys matching --pattern
  --clear-soft     delete SOFT files older than --max-age-days
  --monitor        sample hit rates every --interval until interrupted`,
	RunE: runCache,
}

func init() {
	cacheCmd.Flags().Bool("stats", false, "print cache statistics")
	cacheCmd.Flags().Bool("health-check", false, "probe tier health")
	cacheCmd.Flags().Float64("min-hit-rate", 0, "with --stats, fail when the hot hit rate is below this fraction")
	cacheCmd.Flags().Bool("clear-redis", false, "delete hot-tier keys")
	cacheCmd.Flags().String("pattern", "*", "key glob for --clear-redis")
	cacheCmd.Flags().Bool("clear-soft", false, "delete stale SOFT files")
	cacheCmd.Flags().Int("max-age-days", 90, "age threshold for --clear-soft")
	cacheCmd.Flags().Bool("monitor", false, "periodically sample statistics")
	cacheCmd.Flags().Duration("interval", 30*time.Second, "sampling interval for --monitor")
	cacheCmd.Flags().Bool("dry-run", false, "report what would be removed without removing it")
	cacheCmd.Flags().Bool("execute", false, "apply destructive operations")

	rootCmd.AddCommand(cacheCmd)
}

func runCache(cmd *cobra.Command, args []string) error {
	s, cleanup, err := newStack(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	switch {
	case flagSet(cmd, "stats"):
		return cacheStats(cmd, s)
	case flagSet(cmd, "health-check"):
		return cacheHealth(cmd, s)
	case flagSet(cmd, "clear-redis"):
		return cacheClearRedis(cmd, s)
	case flagSet(cmd, "clear-soft"):
		return cacheClearSoft(cmd, s)
	case flagSet(cmd, "monitor"):
		return cacheMonitor(cmd, s)
	default:
		return validationf("pick one of --stats, --health-check, --clear-redis, --clear-soft, --monitor")
	}
}

func flagSet(cmd *cobra.Command, name string) bool {
	v, _ := cmd.Flags().GetBool(name)
	return v
}

func cacheStats(cmd *cobra.Command, s *stack) error {
	stats := s.cache.Stats()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return err
	}

	min, _ := cmd.Flags().GetFloat64("min-hit-rate")
	if min > 0 && stats.HotHitRate < min {
		return validationf("hot hit rate %.2f below threshold %.2f", stats.HotHitRate, min)
	}
	return nil
}

func cacheHealth(cmd *cobra.Command, s *stack) error {
	h := s.cache.HealthCheck(cmd.Context())
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h); err != nil {
		return err
	}
	if !h.Healthy() {
		return validationf("cache degraded")
	}
	return nil
}

func cacheClearRedis(cmd *cobra.Command, s *stack) error {
	pattern, _ := cmd.Flags().GetString("pattern")
	if !flagSet(cmd, "execute") || flagSet(cmd, "dry-run") {
		fmt.Printf("dry run: would delete hot-tier keys matching %q (pass --execute to apply)\n", pattern)
		return nil
	}

	removed, err := s.cache.Invalidate(cmd.Context(), pattern)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d key(s) matching %q\n", removed, pattern)
	return nil
}

func cacheClearSoft(cmd *cobra.Command, s *stack) error {
	days, _ := cmd.Flags().GetInt("max-age-days")
	if days <= 0 {
		return validationf("--max-age-days must be positive")
	}
	dryRun := !flagSet(cmd, "execute") || flagSet(cmd, "dry-run")

	report, err := cache.CleanupSOFT(s.cache.SoftDir(), time.Duration(days)*24*time.Hour, dryRun)
	if err != nil {
		return err
	}
	verb := "removed"
	if report.DryRun {
		verb = "would remove"
	}
	fmt.Printf("%s %d of %d SOFT file(s), freeing %d bytes\n",
		verb, report.Removed, report.Scanned, report.FreedBytes)
	return nil
}

func cacheMonitor(cmd *cobra.Command, s *stack) error {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		return validationf("--interval must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	enc := json.NewEncoder(os.Stdout)
	for {
		if err := enc.Encode(s.cache.Stats()); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
