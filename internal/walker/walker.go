package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/plectr/reconcile/pkg/blobstore"
	"github.com/plectr/reconcile/pkg/snapshot"
)

// DefaultExcludes are tool and build directories never tracked in a working
// tree.
var DefaultExcludes = []string{
	"**/.git/",
	"**/.plectr/",
	"**/node_modules/",
	"**/target/",
	"**/.next/",
	"**/dist/",
	"**/build/",
}

// FileInfo represents a local file
type FileInfo struct {
	Path    string // Absolute path
	RelPath string // Forward-slash path relative to root
	Size    int64
}

// Walker walks local files with exclude pattern support
type Walker struct {
	root     string
	excludes []string
}

// NewWalker creates a new file walker. DefaultExcludes are always applied in
// addition to excludes.
func NewWalker(root string, excludes []string) (*Walker, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	patterns := make([]string, 0, len(DefaultExcludes)+len(excludes))
	patterns = append(patterns, DefaultExcludes...)
	patterns = append(patterns, excludes...)

	return &Walker{
		root:     absRoot,
		excludes: patterns,
	}, nil
}

// Excludes returns every pattern the walker skips, DefaultExcludes first.
func (w *Walker) Excludes() []string {
	return append([]string(nil), w.excludes...)
}

// Walk returns the regular files under root sorted by relative path.
func (w *Walker) Walk() ([]FileInfo, error) {
	var files []FileInfo

	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == w.root {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return fmt.Errorf("get relative path: %w", err)
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			// a trailing slash lets directory patterns match the directory itself
			excluded, err := snapshot.IsExcluded(relPath+"/", w.excludes)
			if err != nil {
				return err
			}
			if excluded {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		excluded, err := snapshot.IsExcluded(relPath, w.excludes)
		if err != nil {
			return err
		}
		if excluded {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("get file info: %w", err)
		}

		files = append(files, FileInfo{
			Path:    path,
			RelPath: relPath,
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].RelPath < files[j].RelPath
	})
	return files, nil
}

// Scan walks root and hashes every file with hasher using a pool of workers.
// When store is non-nil each file's content is also written to it.
func (w *Walker) Scan(ctx context.Context, hasher blobstore.Hasher, store blobstore.Writer, workers int) ([]snapshot.FileRecord, error) {
	files, err := w.Walk()
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 8
	}

	records := make([]snapshot.FileRecord, len(files))
	jobs := make(chan int)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	setErr := func(err error) {
		errOnce.Do(func() {
			firstErr = err
		})
	}

	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for idx := range jobs {
				rec, err := hashFile(ctx, files[idx], hasher, store)
				if err != nil {
					setErr(err)
					continue
				}
				records[idx] = rec
			}
		}()
	}

feed:
	for i := range files {
		select {
		case jobs <- i:
		case <-ctx.Done():
			setErr(ctx.Err())
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

func hashFile(ctx context.Context, f FileInfo, hasher blobstore.Hasher, store blobstore.Writer) (snapshot.FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return snapshot.FileRecord{}, err
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return snapshot.FileRecord{}, fmt.Errorf("read %s: %w", f.RelPath, err)
	}

	var hash string
	if store != nil {
		hash, err = store.Put(ctx, data)
	} else {
		hash, err = hasher.Sum(data)
	}
	if err != nil {
		return snapshot.FileRecord{}, fmt.Errorf("hash %s: %w", f.RelPath, err)
	}

	return snapshot.FileRecord{
		Path: f.RelPath,
		Hash: hash,
		Size: uint64(len(data)),
	}, nil
}
