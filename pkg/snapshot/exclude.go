package snapshot

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// IsExcluded reports whether path matches any of the doublestar patterns.
// A pattern ending in "/" matches the directory itself and everything below it.
func IsExcluded(path string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(path, "/")
			// the last part is the file itself
			for i := 1; i < len(parts); i++ {
				matched, err := doublestar.Match(dirPattern, strings.Join(parts[:i], "/"))
				if err != nil {
					return false, err
				}
				if matched {
					return true, nil
				}
			}
			continue
		}

		matched, err := doublestar.Match(pattern, path)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}
	return false, nil
}
