package fetcher

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

type ChangeTag string

const (
	TagEqual  ChangeTag = "equal"
	TagDelete ChangeTag = "delete"
	TagInsert ChangeTag = "insert"
)

// Change is one line of a line-level diff. OldIndex and NewIndex are -1 when
// the line does not exist on that side.
type Change struct {
	Tag      ChangeTag `json:"tag"`
	Content  string    `json:"content"`
	OldIndex int       `json:"old_index"`
	NewIndex int       `json:"new_index"`
}

// TextDiff describes how the remote side turns into the local side.
type TextDiff struct {
	Binary  bool     `json:"binary"`
	Changes []Change `json:"changes"`
	Unified string   `json:"unified"`
}

const binarySniffLen = 8000

// IsBinary reports whether data looks like non-text content.
func IsBinary(data []byte) bool {
	sniff := data
	if len(sniff) > binarySniffLen {
		sniff = sniff[:binarySniffLen]
	}
	return bytes.IndexByte(sniff, 0) >= 0 || !utf8.Valid(data)
}

// splitLines keeps line terminators and, unlike difflib.SplitLines, does not
// add a phantom empty line after a trailing newline.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Diff computes the line diff from the remote to the local content.
func Diff(pair *Pair) (TextDiff, error) {
	if IsBinary(pair.Local) || IsBinary(pair.Remote) {
		return TextDiff{Binary: true, Changes: []Change{}}, nil
	}

	remoteLines := splitLines(string(pair.Remote))
	localLines := splitLines(string(pair.Local))

	changes := []Change{}
	matcher := difflib.NewMatcher(remoteLines, localLines)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for i := op.I1; i < op.I2; i++ {
				changes = append(changes, Change{Tag: TagEqual, Content: remoteLines[i], OldIndex: i, NewIndex: op.J1 + (i - op.I1)})
			}
		case 'd':
			for i := op.I1; i < op.I2; i++ {
				changes = append(changes, Change{Tag: TagDelete, Content: remoteLines[i], OldIndex: i, NewIndex: -1})
			}
		case 'i':
			for j := op.J1; j < op.J2; j++ {
				changes = append(changes, Change{Tag: TagInsert, Content: localLines[j], OldIndex: -1, NewIndex: j})
			}
		case 'r':
			for i := op.I1; i < op.I2; i++ {
				changes = append(changes, Change{Tag: TagDelete, Content: remoteLines[i], OldIndex: i, NewIndex: -1})
			}
			for j := op.J1; j < op.J2; j++ {
				changes = append(changes, Change{Tag: TagInsert, Content: localLines[j], OldIndex: -1, NewIndex: j})
			}
		}
	}

	unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        remoteLines,
		B:        localLines,
		FromFile: fmt.Sprintf("remote/%s", pair.Path),
		ToFile:   fmt.Sprintf("local/%s", pair.Path),
		Context:  3,
	})
	if err != nil {
		return TextDiff{}, fmt.Errorf("failed to render diff for %s: %w", pair.Path, err)
	}

	return TextDiff{
		Changes: changes,
		Unified: unified,
	}, nil
}
