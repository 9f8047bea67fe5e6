package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plectr/reconcile/internal/walker"
	"github.com/plectr/reconcile/pkg/blobstore"
	"github.com/plectr/reconcile/pkg/classifier"
	"github.com/plectr/reconcile/pkg/snapshot"
)

const workingTreeID = "working-tree"

func newStatusCmd() *cobra.Command {
	var upload bool

	cmd := &cobra.Command{
		Use:   "status <repo> <dir>",
		Short: "Compare a working directory with the repository head",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(cmd)
			if err != nil {
				return err
			}

			w, err := walker.NewWalker(args[1], a.cfg.Excludes)
			if err != nil {
				return err
			}

			var store blobstore.Writer
			if upload {
				store = a.blobs
			}
			records, err := w.Scan(ctx, a.hasher, store, a.cfg.Concurrency)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", args[1], err)
			}
			local, err := snapshot.New(workingTreeID, records)
			if err != nil {
				return err
			}

			head, err := a.service.GetHead(ctx, args[0])
			if err != nil {
				return err
			}
			var remoteRecords []snapshot.FileRecord
			if !head.Empty {
				remoteRecords, err = a.service.GetTree(ctx, args[0], head.CommitID)
				if err != nil {
					return err
				}
			}
			remote, err := snapshot.New(head.CommitID, remoteRecords)
			if err != nil {
				return err
			}

			// The remote side is filtered like the working tree walk so
			// untracked build output is not reported as remote additions.
			class, err := classifier.ClassifyWithOptions(local, remote, classifier.Options{Excludes: w.Excludes()})
			if err != nil {
				return err
			}
			a.printer.PrintClassification(class)
			return nil
		},
	}

	cmd.Flags().BoolVar(&upload, "upload", false, "Store working tree content in the blob store")
	return cmd
}
