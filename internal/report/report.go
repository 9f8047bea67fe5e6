package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/plectr/reconcile/pkg/classifier"
	"github.com/plectr/reconcile/pkg/fetcher"
)

// Printer writes human readable output
type Printer struct {
	out   io.Writer
	err   io.Writer
	quiet bool
}

// NewPrinter creates a printer on stdout and stderr
func NewPrinter(quiet bool) *Printer {
	return &Printer{out: os.Stdout, err: os.Stderr, quiet: quiet}
}

func newPrinterTo(out, errOut io.Writer, quiet bool) *Printer {
	return &Printer{out: out, err: errOut, quiet: quiet}
}

// Info prints a message unless quiet
func (p *Printer) Info(format string, args ...interface{}) {
	if !p.quiet {
		fmt.Fprintf(p.out, format+"\n", args...)
	}
}

// Error always prints
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintf(p.err, "ERROR: "+format+"\n", args...)
}

// PrintClassification lists conflicts and additions followed by a summary.
// In quiet mode only the conflicts are listed.
func (p *Printer) PrintClassification(c classifier.Classification) {
	for _, conflict := range c.Conflicts {
		fmt.Fprintf(p.out, "conflict: %s (local %s, remote %s)\n",
			conflict.Path, humanize.IBytes(conflict.Size), humanize.IBytes(conflict.RemoteSize))
	}
	if p.quiet {
		return
	}
	for _, add := range c.Additions {
		fmt.Fprintf(p.out, "add: %s (%s)\n", add.Path, humanize.IBytes(add.Size))
	}
	for _, add := range c.RemoteAdditions {
		fmt.Fprintf(p.out, "remote add: %s (%s)\n", add.Path, humanize.IBytes(add.Size))
	}

	s := c.Summary()
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "=== %s..%s ===\n", shortID(c.LocalCommitID), shortID(c.RemoteCommitID))
	fmt.Fprintf(p.out, "Conflicts: %s (%s)\n", humanize.Comma(int64(s.Conflicts)), humanize.IBytes(s.ConflictBytes))
	fmt.Fprintf(p.out, "Additions: %s (%s)\n", humanize.Comma(int64(s.Additions)), humanize.IBytes(s.AdditionBytes))
	fmt.Fprintf(p.out, "Remote additions: %s\n", humanize.Comma(int64(s.RemoteAdditions)))
	fmt.Fprintf(p.out, "Unchanged: %s\n", humanize.Comma(int64(s.Unchanged)))
}

// PrintDiff prints the unified diff of one conflict.
func (p *Printer) PrintDiff(path string, d fetcher.TextDiff) {
	if d.Binary {
		fmt.Fprintf(p.out, "Binary files remote/%s and local/%s differ\n", path, path)
		return
	}
	fmt.Fprint(p.out, d.Unified)
}

// PrintUnresolved lists conflicts still lacking a decision.
func (p *Printer) PrintUnresolved(paths []string) {
	for _, path := range paths {
		fmt.Fprintf(p.err, "unresolved: %s\n", path)
	}
}

// PrintMergeSummary prints the outcome of a submitted merge.
func (p *Printer) PrintMergeSummary(commitID string, decisions, dropped int, duration time.Duration) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintln(p.out, "=== Summary ===")
	fmt.Fprintf(p.out, "Merged commit: %s\n", commitID)
	fmt.Fprintf(p.out, "Decisions: %d\n", decisions)
	if dropped > 0 {
		fmt.Fprintf(p.out, "Dropped after rebase: %d\n", dropped)
	}
	fmt.Fprintf(p.out, "Duration: %s\n", duration.Round(time.Millisecond))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
