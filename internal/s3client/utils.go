package s3client

import (
	"fmt"
	"strings"
)

// ParseS3URI splits an s3://bucket/prefix location into its bucket and key
// prefix. Trailing slashes collapse to one, so blob keys never contain an
// empty segment, and a location naming only the bucket has no prefix.
func ParseS3URI(uri string) (bucket, prefix string, err error) {
	if !strings.HasPrefix(uri, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URI: must start with s3://")
	}

	path := strings.TrimPrefix(uri, "s3://")
	parts := strings.SplitN(path, "/", 2)

	if len(parts) == 0 || parts[0] == "" {
		return "", "", fmt.Errorf("invalid S3 URI: missing bucket name")
	}

	bucket = parts[0]
	if len(parts) > 1 {
		prefix = strings.TrimRight(parts[1], "/")
		if prefix != "" {
			prefix += "/"
		}
	}

	return bucket, prefix, nil
}
