// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/pdiddy/geo-fulltext/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [accessions...]",
	Short: "Climb the full enrichment ladder for GEO accessions",
	Long: `Enrich raises each accession to the requested completeness level:
metadata, citing publications, full-text URLs, PDFs, and parsed sections.
Work already done is never repeated, so re-running after a partial failure
picks up where the previous run stopped.

The per-dataset snapshots are printed to stdout as JSON.`,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().String("level", "", "target completeness level (default from config)")
	enrichCmd.Flags().Int("max-papers", 0, "cap on publications per dataset (0 = config default)")
	enrichCmd.Flags().String("events-file", "", "append stage-completion records to this JSONL file")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	req, err := requestFromArgs(cmd, args)
	if err != nil {
		return err
	}

	s, cleanup, err := newStack(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	stopEvents, err := streamEvents(cmd, s)
	if err != nil {
		return err
	}
	defer stopEvents()

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
		return validationf("%d dataset(s) stopped short of the target level", n)
	}
	return nil
}

// requestFromArgs validates accessions and assembles the request.
func requestFromArgs(cmd *cobra.Command, args []string) (*types.EnrichRequest, error) {
	if len(args) == 0 {
		return nil, validationf("provide one or more GEO series accessions (e.g. GSE52564)")
	}
	req := &types.EnrichRequest{}
	for _, acc := range args {
		if !types.ValidAccession(acc) {
			return nil, validationf("%q is not a GEO series accession", acc)
		}
		req.Datasets = append(req.Datasets, types.DatasetSeed{GeoID: acc})
	}

	if level, _ := cmd.Flags().GetString("level"); level != "" {
		parsed, err := types.ParseLevel(level)
		if err != nil {
			return nil, validationf("%v", err)
		}
		req.DesiredLevel = parsed
	}
	req.MaxPapersPerDataset, _ = cmd.Flags().GetInt("max-papers")
	return req, nil
}

// streamEvents appends stage-completion records to the --events-file as
// JSONL. The returned func drains the subscription and closes the file.
func streamEvents(cmd *cobra.Command, s *stack) (func(), error) {
	path, _ := cmd.Flags().GetString("events-file")
	if path == "" {
		return func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening events file: %w", err)
	}

	events, unsubscribe := s.svc.Subscribe(256)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		enc := json.NewEncoder(f)
		for ev := range events {
			enc.Encode(ev)
		}
	}()

	return func() {
		unsubscribe()
		wg.Wait()
		f.Close()
	}, nil
}
