package netfs

import (
	"fmt"
	"strings"
)

// Normalize converts backslashes to slashes and strips exactly one trailing
// slash. Repeated inner slashes are kept. The empty string is returned
// unchanged.
func Normalize(p string) string {
	if p == "" {
		return p
	}
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimSuffix(p, "/")
}

// Relative normalizes p and strips one leading slash, producing a path
// relative to a base directory.
func Relative(p string) string {
	return strings.TrimPrefix(Normalize(p), "/")
}

// Join appends the base-relative path rel to base.
func Join(base, rel string) string {
	rel = Relative(rel)
	switch {
	case rel == "":
		return base
	case base == "":
		return rel
	case strings.HasSuffix(base, "/"):
		return base + rel
	default:
		return base + "/" + rel
	}
}

// ValidName checks that name is usable as a single file name inside a
// directory: not blank and free of path separators.
func ValidName(name string) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
