// Package globmatch implements the shell-style tag-pattern matching used by
// Backend.InvalidateByPattern ('*' and '?' wildcards, no path separators).
package globmatch

import "path"

// Match reports whether name matches pattern, using path.Match's '*'/'?'/
// '[...]' syntax. An invalid pattern returns an error, same as path.Match.
func Match(pattern, name string) (bool, error) {
	return path.Match(pattern, name)
}
