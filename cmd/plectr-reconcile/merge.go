package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/plectr/reconcile/internal/report"
	"github.com/plectr/reconcile/pkg/session"
)

const (
	sideLocal  = "local"
	sideRemote = "remote"
)

type mergeOptions struct {
	takes          []string
	takeFiles      []string
	decisionsFile  string
	all            string
	dryRun         bool
	rebaseOnReject bool
	resultJSONFile string
}

func newMergeCmd() *cobra.Command {
	var opts mergeOptions

	cmd := &cobra.Command{
		Use:   "merge <repo> <divergent-commit>",
		Short: "Record explicit decisions for every conflict and submit the merge",
		Long: `merge records one decision per conflicted path and submits the merge.
Decisions are applied in order: --all, --decisions-file, --take, --take-file.
Nothing is submitted while any conflict is left without a decision.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd)
			if err != nil {
				return err
			}
			return runMerge(cmd.Context(), a, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.takes, "take", nil, "Resolve a conflict as path=local or path=remote (multiple allowed)")
	cmd.Flags().StringArrayVar(&opts.takeFiles, "take-file", nil, "Resolve a conflict with the content of a file as path=file (multiple allowed)")
	cmd.Flags().StringVar(&opts.decisionsFile, "decisions-file", "", "JSON object mapping paths to local, remote or a content hash")
	cmd.Flags().StringVar(&opts.all, "all", "", "Resolve every conflict to local or remote")
	cmd.Flags().BoolVar(&opts.dryRun, "dryrun", false, "Record decisions without submitting")
	cmd.Flags().BoolVar(&opts.rebaseOnReject, "rebase-on-reject", false, "Rebase onto the new head and resubmit once if the merge is rejected")
	cmd.Flags().StringVar(&opts.resultJSONFile, "result-json-file", "", "Path to output result as JSON file")
	return cmd
}

func runMerge(ctx context.Context, a *app, repo, divergent string, opts mergeOptions) error {
	start := time.Now()

	s, err := a.openSession(ctx, repo, divergent)
	if err != nil {
		return err
	}

	if err := applyDecisions(ctx, s, opts); err != nil {
		return err
	}

	result := report.MergeResult{
		RemoteCommitID: s.RemoteCommitID(),
		Unresolved:     []string{},
		Dropped:        []string{},
	}
	finish := func(status string, err error) error {
		result.Status = status
		result.RemoteCommitID = s.RemoteCommitID()
		result.Decisions = report.NewDecisions(s.Classification(), s.Decisions())
		if err != nil {
			result.Error = err.Error()
		}
		if opts.resultJSONFile != "" {
			if werr := report.WriteJSON(opts.resultJSONFile, result); werr != nil {
				return errors.Join(err, fmt.Errorf("failed to write result JSON: %w", werr))
			}
		}
		return err
	}

	if !s.IsComplete() {
		result.Unresolved = s.Unresolved()
		a.printer.PrintUnresolved(result.Unresolved)
		return finish("incomplete", fmt.Errorf("%w: %d conflicts need a decision", session.ErrIncomplete, len(result.Unresolved)))
	}

	if opts.dryRun {
		decisions := s.Decisions()
		for _, path := range s.Classification().ConflictPaths() {
			a.printer.Info("(dryrun) resolve: %s -> %s", path, decisions[path])
		}
		return finish("dryrun", nil)
	}

	commitID, err := s.Submit(ctx)
	var mergeErr *session.MergeError
	if err != nil && opts.rebaseOnReject && errors.As(err, &mergeErr) && mergeErr.Outcome == session.OutcomeRejected {
		a.printer.Info("merge rejected, rebasing onto the new head")
		dropped, rerr := s.Rebase(ctx)
		if rerr != nil {
			return finish("failed", rerr)
		}
		result.Dropped = append(result.Dropped, dropped...)
		if !s.IsComplete() {
			result.Unresolved = s.Unresolved()
			a.printer.PrintUnresolved(result.Unresolved)
			return finish("incomplete", fmt.Errorf("%w after rebase: %d conflicts need a decision", session.ErrIncomplete, len(result.Unresolved)))
		}
		commitID, err = s.Submit(ctx)
	}
	if err != nil {
		if errors.As(err, &mergeErr) && mergeErr.Outcome == session.OutcomeUnknown {
			a.printer.Error("merge outcome unknown; check the repository head before retrying")
		}
		return finish("failed", err)
	}

	result.CommitID = commitID
	a.printer.PrintMergeSummary(commitID, len(s.Decisions()), len(result.Dropped), time.Since(start))
	return finish("merged", nil)
}

// applyDecisions records every decision given on the command line.
func applyDecisions(ctx context.Context, s *session.Session, opts mergeOptions) error {
	if opts.all != "" {
		for _, path := range s.Classification().ConflictPaths() {
			if err := take(s, path, opts.all); err != nil {
				return err
			}
		}
	}

	if opts.decisionsFile != "" {
		decisions, err := readDecisionsFile(opts.decisionsFile)
		if err != nil {
			return err
		}
		paths := lo.Keys(decisions)
		sort.Strings(paths)
		for _, path := range paths {
			choice := decisions[path]
			if choice == sideLocal || choice == sideRemote {
				err = take(s, path, choice)
			} else {
				err = s.Record(path, choice)
			}
			if err != nil {
				return fmt.Errorf("%s: %w", opts.decisionsFile, err)
			}
		}
	}

	for _, arg := range opts.takes {
		path, side, err := splitAssignment(arg)
		if err != nil {
			return err
		}
		if err := take(s, path, side); err != nil {
			return err
		}
	}

	for _, arg := range opts.takeFiles {
		path, file, err := splitAssignment(arg)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read resolution for %s: %w", path, err)
		}
		if _, err := s.RecordContent(ctx, path, data); err != nil {
			return err
		}
	}
	return nil
}

func take(s *session.Session, path, side string) error {
	switch side {
	case sideLocal:
		return s.TakeLocal(path)
	case sideRemote:
		return s.TakeRemote(path)
	default:
		return fmt.Errorf("invalid side %q for %s: must be local or remote", side, path)
	}
}

func splitAssignment(arg string) (string, string, error) {
	path, value, ok := strings.Cut(arg, "=")
	if !ok || path == "" || value == "" {
		return "", "", fmt.Errorf("invalid assignment %q: expected path=value", arg)
	}
	return path, value, nil
}

func readDecisionsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read decisions file: %w", err)
	}
	var decisions map[string]string
	if err := json.Unmarshal(data, &decisions); err != nil {
		return nil, fmt.Errorf("failed to parse decisions file %s: %w", path, err)
	}
	return decisions, nil
}
