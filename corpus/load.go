package corpus

import (
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fwojciec/bench"
)

// LoadContext reads every file under dir matching pattern (doublestar
// syntax, e.g. "**/*.txt") and concatenates them in path order, separated
// by a blank line. Matching nothing is a configuration error.
func LoadContext(dir, pattern string) (string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return "", fmt.Errorf("invalid context pattern %q: %w", pattern, bench.ErrConfig)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("context directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("context path %q is not a directory: %w", dir, bench.ErrConfig)
	}

	fsys := os.DirFS(dir)
	var matches []string
	err = doublestar.GlobWalk(fsys, pattern, func(path string, d iofs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("match context pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no context files match %q in %s: %w", pattern, dir, bench.ErrConfig)
	}
	sort.Strings(matches)

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		data, err := iofs.ReadFile(fsys, m)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", filepath.FromSlash(m), err)
		}
		parts = append(parts, strings.TrimRight(string(data), "\n"))
	}
	return strings.Join(parts, "\n\n"), nil
}
