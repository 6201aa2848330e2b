// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// loadConfig folds the recognized config keys and loaded secrets over the
// documented defaults. Unknown keys in the file are ignored.
func loadConfig() types.Config {
	cfg := types.DefaultConfig()
	v := viper.GetViper()

	if s := v.GetString("storage_root"); s != "" {
		cfg.StorageRoot = s
	}
	if s := v.GetString("desired_completeness_default"); s != "" {
		cfg.DesiredLevelDefault = s
	}
	if s := v.GetString("redis_url"); s != "" {
		cfg.Cache.RedisURL = s
	}

	for key, dst := range map[string]*bool{
		"enable_pmc":           &cfg.Sources.EnablePMC,
		"enable_unpaywall":     &cfg.Sources.EnableUnpaywall,
		"enable_openalex":      &cfg.Sources.EnableOpenAlex,
		"enable_scihub":        &cfg.Sources.EnableSciHub,
		"enable_institutional": &cfg.Sources.EnableInstitutional,
	} {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	if n := v.GetInt("max_concurrent_downloads"); n > 0 {
		cfg.Download.MaxConcurrent = n
	}
	if n := v.GetInt("per_request_timeout_s"); n > 0 {
		d := time.Duration(n) * time.Second
		cfg.Timeout = d
		cfg.Download.Timeout = d
		cfg.Discovery.Timeout = d
	}
	if n := v.GetInt("p2_batch_timeout_s"); n > 0 {
		cfg.Fulltext.BatchTimeout = time.Duration(n) * time.Second
	}
	if n := v.GetInt("discovery_timeout_s"); n > 0 {
		cfg.Discovery.BatchTimeout = time.Duration(n) * time.Second
	}
	if n := v.GetInt("max_retries"); n > 0 {
		cfg.Pipeline.MaxRetries = n
	}
	if mins := v.GetIntSlice("backoff_minutes"); len(mins) > 0 {
		backoff := make([]time.Duration, len(mins))
		for i, m := range mins {
			backoff[i] = time.Duration(m) * time.Minute
		}
		cfg.Pipeline.Backoff = backoff
	}

	if s := v.GetString("ncbi_contact_email"); s != "" {
		cfg.Sources.NCBIContactEmail = s
	}
	if s := v.GetString("unpaywall_email"); s != "" {
		cfg.Sources.UnpaywallEmail = s
	}

	cfg.Sources.NCBIAPIKey = secretDefault("ncbi-api-key", cfg.Sources.NCBIAPIKey)
	cfg.Sources.NCBIContactEmail = secretDefault("ncbi-contact-email", cfg.Sources.NCBIContactEmail)
	cfg.Sources.UnpaywallEmail = secretDefault("unpaywall-email", cfg.Sources.UnpaywallEmail)
	cfg.Sources.SemanticScholarAPIKey = secretDefault("semantic-scholar-api-key", cfg.Sources.SemanticScholarAPIKey)
	cfg.Sources.COREAPIKey = secretDefault("core-api-key", cfg.Sources.COREAPIKey)

	return cfg
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or scaffold the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a geo-fulltext.yaml with the documented defaults",
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	const path = "geo-fulltext.yaml"
	force, _ := cmd.Flags().GetBool("force")
	if _, err := os.Stat(path); err == nil && !force {
		return validationf("%s already exists; pass --force to overwrite", path)
	}

	data, err := yaml.Marshal(types.DefaultConfig())
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := yaml.Marshal(loadConfig())
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().Bool("force", false, "overwrite an existing config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
