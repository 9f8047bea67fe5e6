package walker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plectr/reconcile/pkg/blobstore"
	"github.com/plectr/reconcile/pkg/snapshot"
)

func makeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0644))
	}
	return root
}

func relPaths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.RelPath)
	}
	return out
}

func TestWalk(t *testing.T) {
	root := makeTree(t, map[string]string{
		"README.md":               "readme",
		"src/main.go":             "package main",
		"src/gen/out.tmp":         "tmp",
		".plectr/config.json":     "{}",
		".git/HEAD":               "ref",
		"web/node_modules/x/a.js": "js",
		"vendor/lib/lib.go":       "lib",
		"docs/build/index.html":   "html",
		"docs/building-guide.md":  "guide",
	})

	tests := []struct {
		name     string
		excludes []string
		want     []string
	}{
		{
			name: "default excludes only",
			want: []string{"README.md", "docs/building-guide.md", "src/gen/out.tmp", "src/main.go", "vendor/lib/lib.go"},
		},
		{
			name:     "directory and file patterns",
			excludes: []string{"vendor/", "**/*.tmp"},
			want:     []string{"README.md", "docs/building-guide.md", "src/main.go"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewWalker(root, tt.excludes)
			require.NoError(t, err)
			files, err := w.Walk()
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(files))
		})
	}
}

func TestExcludesMatchRemoteListing(t *testing.T) {
	w, err := NewWalker(t.TempDir(), []string{"vendor/"})
	require.NoError(t, err)
	assert.Equal(t, append(append([]string(nil), DefaultExcludes...), "vendor/"), w.Excludes())

	remote, err := snapshot.New("r1", []snapshot.FileRecord{
		{Path: "dist/app.js", Hash: "h1"},
		{Path: "web/node_modules/x/a.js", Hash: "h2"},
		{Path: "vendor/lib/lib.go", Hash: "h3"},
		{Path: "src/main.go", Hash: "h4"},
	})
	require.NoError(t, err)

	filtered, err := remote.Exclude(w.Excludes())
	require.NoError(t, err)
	assert.Equal(t, []string{"src/main.go"}, filtered.Paths())
}

func TestNewWalkerRejectsFile(t *testing.T) {
	root := makeTree(t, map[string]string{"f": "x"})
	_, err := NewWalker(filepath.Join(root, "f"), nil)
	assert.Error(t, err)

	_, err = NewWalker(filepath.Join(root, "missing"), nil)
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	root := makeTree(t, map[string]string{
		"a.txt":     "alpha",
		"dir/b.txt": "beta",
		"dir/c.txt": "",
	})
	hasher := blobstore.Blake3Hasher{}

	w, err := NewWalker(root, nil)
	require.NoError(t, err)

	records, err := w.Scan(context.Background(), hasher, nil, 2)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, rec := range records {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rec.Path)))
		require.NoError(t, err)
		want, err := hasher.Sum(data)
		require.NoError(t, err)
		assert.Equal(t, want, rec.Hash, rec.Path)
		assert.Equal(t, uint64(len(data)), rec.Size)
	}
	assert.Equal(t, "a.txt", records[0].Path)
	assert.Equal(t, "dir/c.txt", records[2].Path)
}

func TestScanUploads(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "alpha", "b.txt": "alpha"})
	store := blobstore.NewMemoryStore(blobstore.Blake3Hasher{})

	w, err := NewWalker(root, nil)
	require.NoError(t, err)
	records, err := w.Scan(context.Background(), blobstore.Blake3Hasher{}, store, 0)
	require.NoError(t, err)

	assert.Equal(t, records[0].Hash, records[1].Hash)
	assert.Equal(t, 1, store.Len())
}

func TestScanCancelled(t *testing.T) {
	root := makeTree(t, map[string]string{"a.txt": "alpha"})
	w, err := NewWalker(root, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Scan(ctx, blobstore.Blake3Hasher{}, nil, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
