package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plectr/reconcile/internal/report"
	"github.com/plectr/reconcile/pkg/fetcher"
)

func newPlanCmd() *cobra.Command {
	var planJSONFile string

	cmd := &cobra.Command{
		Use:   "plan <repo> <divergent-commit>",
		Short: "Show conflicts and additions between a divergent commit and the head",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			s, err := a.openSession(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			class := s.Classification()
			a.printer.PrintClassification(class)

			if planJSONFile != "" {
				if err := report.WriteJSON(planJSONFile, report.NewPlanResult(class)); err != nil {
					return fmt.Errorf("failed to write plan JSON: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&planJSONFile, "plan-json-file", "", "Path to output plan as JSON file")
	return cmd
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <repo> <divergent-commit> [path...]",
		Short: "Show line diffs from the head to the divergent commit for conflicts",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			s, err := a.openSession(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			paths := args[2:]
			if len(paths) == 0 {
				paths = s.Classification().ConflictPaths()
			}

			var requests []fetcher.Request
			for _, path := range paths {
				c, ok := s.Classification().Conflict(path)
				if !ok {
					return fmt.Errorf("%s is not a conflict", path)
				}
				requests = append(requests, fetcher.Request{
					Path:       path,
					LocalHash:  c.LocalHash,
					RemoteHash: c.RemoteHash,
				})
			}

			f := fetcher.New(a.blobs, fetcher.WithVerification(a.hasher))
			var failed int
			for _, result := range f.FetchAll(ctx, requests, a.cfg.Concurrency) {
				if result.Error != nil {
					failed++
					a.printer.Error("%s: %v", result.Request.Path, result.Error)
					continue
				}
				d, err := fetcher.Diff(result.Pair)
				if err != nil {
					failed++
					a.printer.Error("%s: %v", result.Request.Path, err)
					continue
				}
				a.printer.PrintDiff(result.Request.Path, d)
			}

			if failed > 0 {
				return fmt.Errorf("%d diffs failed", failed)
			}
			return nil
		},
	}
}
