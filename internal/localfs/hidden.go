// Package localfs walks media directories for the dataset index.
package localfs

import (
	"path/filepath"
	"strings"
)

// IsHidden reports whether the base name of path is hidden.
func IsHidden(path string) bool {
	return IsHiddenName(filepath.Base(path))
}

// IsHiddenName reports whether name starts with a dot. "." and ".." are
// not hidden.
func IsHiddenName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return strings.HasPrefix(name, ".")
}
