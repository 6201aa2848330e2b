// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the geo-fulltext CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/geo-fulltext/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// validationError distinguishes operator mistakes and failed checks
// (exit 1) from fatal errors (exit 2).
type validationError struct{ err error }

func (e validationError) Error() string { return e.err.Error() }
func (e validationError) Unwrap() error { return e.err }

func validationf(format string, args ...any) error {
	return validationError{err: fmt.Errorf(format, args...)}
}

// rootCmd is the base command for the geo-fulltext CLI.
var rootCmd = &cobra.Command{
	Use:   "geo-fulltext",
	Short: "Enrich GEO datasets with their scientific literature",
	Long: `geo-fulltext links GEO series accessions to the papers that produced and
cite them, collects full-text URLs, downloads the PDFs, and extracts
section-level text for downstream analysis.

Each pipeline stage is a subcommand: discover, collect, download, and parse
raise datasets to that stage's completeness level; enrich climbs the whole
ladder. complete prints the assembled snapshot and cache manages the
hot/warm/cold tiers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./geo-fulltext.yaml or ~/.config/geo-fulltext/config.yaml)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "emit raw JSON log records instead of bracketed lines")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("geo-fulltext")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "geo-fulltext"))
		}
	}

	viper.SetEnvPrefix("GEO_FULLTEXT")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var v validationError
		if errors.As(err, &v) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
