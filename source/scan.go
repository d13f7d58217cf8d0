package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Scanner expands glob patterns under a repository root and parses every
// matching file with the registered language parser.
type Scanner struct {
	Root             string
	Patterns         []string
	BaseInitializers []string
	Registry         *Registry
}

// Files returns the repository-relative paths matched by the scanner's
// patterns, sorted and without duplicates. Files with no registered parser
// are skipped.
func (s *Scanner) Files() ([]string, error) {
	fsys := os.DirFS(s.Root)
	seen := make(map[string]bool)
	var files []string

	for _, pattern := range s.Patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid source pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, match := range matches {
			if seen[match] {
				continue
			}
			if _, ok := s.registry().Language(match); !ok {
				continue
			}
			seen[match] = true
			files = append(files, match)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Scan parses all matched files.
func (s *Scanner) Scan(ctx context.Context) ([]*File, error) {
	paths, err := s.Files()
	if err != nil {
		return nil, err
	}

	files := make([]*File, 0, len(paths))
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		content, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}

		parser, err := s.registry().ParserFor(rel, s.BaseInitializers)
		if err != nil {
			return nil, err
		}

		file, err := parser.Parse(ctx, rel, content)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", rel, err)
		}
		files = append(files, file)
	}

	return files, nil
}

func (s *Scanner) registry() *Registry {
	if s.Registry == nil {
		return DefaultRegistry
	}
	return s.Registry
}
