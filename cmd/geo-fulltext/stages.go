// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

// Stage-bounded commands. Each is enrich stopped at one rung of the
// ladder, for operators running the pipeline piecemeal.

func stageCommand(use, short, long string, level types.CompletenessLevel) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [accessions...]",
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToLevel(cmd, args, level)
		},
	}
	cmd.Flags().Int("max-papers", 0, "cap on publications per dataset (0 = config default)")
	return cmd
}

func runToLevel(cmd *cobra.Command, args []string, level types.CompletenessLevel) error {
	req, err := requestFromArgs(cmd, args)
	if err != nil {
		return err
	}
	req.DesiredLevel = level

	s, cleanup, err := newStack(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	resp, err := s.svc.Enrich(cmd.Context(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if n := len(resp.Errors); n > 0 {
		return validationf("%d dataset(s) stopped short of %s", n, level)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(stageCommand("discover",
		"Discover originating and citing publications",
		`Discover fetches dataset metadata from GEO E-utilities, resolves the
originating papers from the recorded PubMed ids, and fans out across the
citation sources to find papers citing the dataset. Results are merged,
deduplicated, and quality-scored.`,
		types.LevelWithCitations))

	rootCmd.AddCommand(stageCommand("collect",
		"Collect full-text URL candidates for discovered publications",
		`Collect queries every enabled source for full-text locations of the
dataset's publications and stores the classified, priority-ordered
candidates for the download waterfall.`,
		types.LevelWithURLs))

	rootCmd.AddCommand(stageCommand("download",
		"Download PDFs through the candidate waterfall",
		`Download walks each publication's URL candidates in priority order until
a validated PDF lands on disk. Every attempt is recorded; paywalled and
blocked hosts are skipped on later runs.`,
		types.LevelWithPDFs))

	rootCmd.AddCommand(stageCommand("parse",
		"Extract section text from downloaded PDFs",
		`Parse extracts plain text from each downloaded PDF, segments it into
canonical sections, pulls out table and figure captions, and stores the
normalized content under its content hash.`,
		types.LevelFullyEnriched))
}
