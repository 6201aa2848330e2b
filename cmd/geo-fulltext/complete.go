// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-fulltext/internal/registry"
	"github.com/pdiddy/geo-fulltext/pkg/types"
)

var completeCmd = &cobra.Command{
	Use:   "complete [accession]",
	Short: "Print the complete dataset snapshot as JSON",
	Long: `Complete assembles everything known about a dataset in one read:
metadata, completeness level, publications with their download history and
parsed-content summaries, and aggregate statistics.

--verify recomputes each PDF's SHA-256 against the registry record and
drops files that are missing or corrupted from the snapshot.`,
	RunE: runComplete,
}

func init() {
	completeCmd.Flags().Bool("include-rejected", false, "include quality-rejected citing papers")
	completeCmd.Flags().Bool("verify", false, "verify PDF integrity while assembling")

	rootCmd.AddCommand(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return validationf("provide exactly one GEO series accession")
	}
	geoID := args[0]
	if !types.ValidAccession(geoID) {
		return validationf("%q is not a GEO series accession", geoID)
	}

	s, cleanup, err := newStack(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	includeRejected, _ := cmd.Flags().GetBool("include-rejected")
	verify, _ := cmd.Flags().GetBool("verify")

	ctx := cmd.Context()
	snap, err := s.reg.GetComplete(ctx, geoID, registry.SnapshotOptions{
		IncludeRejected: includeRejected,
		Verify:          verify,
		ParsedSummary: func(sha string) *types.ParsedSummary {
			content, err := s.cache.GetParsed(ctx, sha)
			if err != nil || content == nil {
				return nil
			}
			summary := content.Summary()
			return &summary
		},
	})
	if err != nil {
		return err
	}
	if snap == nil {
		return validationf("dataset %s is not in the registry; run enrich first", geoID)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
