package storage

import (
	"fmt"
	"path"
	"strings"
)

// CleanPath validates an object path and returns it without a leading slash.
// Paths are relative, slash separated, and may not climb out of the bucket.
func CleanPath(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return "", fmt.Errorf("object path is required")
	}
	if strings.Contains(trimmed, "\\") {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	for _, segment := range strings.Split(trimmed, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid object path %q", p)
		}
	}
	if path.Clean(trimmed) != trimmed {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return trimmed, nil
}
