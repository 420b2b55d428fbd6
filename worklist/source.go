// Package worklist selects the years a batch runs: fixed lists, YAML queue
// files matched by glob patterns, and a filter that drops years already in
// the puzzles file.
package worklist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Static is a fixed, ordered list of years.
type Static []int

// Years implements batch.WorkSource.
func (s Static) Years(context.Context) ([]int, error) {
	return slices.Clone(s), nil
}

// Range returns the years from..to inclusive, ascending.
func Range(from, to int) Static {
	if to < from {
		return Static{}
	}
	years := make(Static, 0, to-from+1)
	for y := from; y <= to; y++ {
		years = append(years, y)
	}
	return years
}

// QueueFile is the YAML shape of a work-list file.
type QueueFile struct {
	Years []int `yaml:"years"`
}

// FileSource reads years from YAML files under Root matching any of
// Patterns. Patterns support ** (e.g. "queue/**/*.yaml").
type FileSource struct {
	Root     string
	Patterns []string
}

// Files returns the matched files in lexical order without duplicates.
func (s *FileSource) Files() ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range s.Patterns {
		full := pattern
		if !filepath.IsAbs(pattern) {
			full = filepath.Join(s.Root, pattern)
		}
		matches, err := doublestar.FilepathGlob(full)
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// Years implements batch.WorkSource. Years keep file order; repeats are
// dropped.
func (s *FileSource) Years(ctx context.Context) ([]int, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var years []int
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read work list: %w", err)
		}
		var q QueueFile
		if err := yaml.Unmarshal(data, &q); err != nil {
			return nil, fmt.Errorf("parse work list %s: %w", f, err)
		}
		for _, y := range q.Years {
			if !seen[y] {
				seen[y] = true
				years = append(years, y)
			}
		}
	}
	return years, nil
}

// YearLister reports years that already have clues.
type YearLister interface {
	Years() ([]int, error)
}

// Source is the batch.WorkSource contract.
type Source interface {
	Years(ctx context.Context) ([]int, error)
}

// Missing drops years that Existing already holds.
type Missing struct {
	Source   Source
	Existing YearLister
}

// Years implements batch.WorkSource.
func (m Missing) Years(ctx context.Context) ([]int, error) {
	years, err := m.Source.Years(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := m.Existing.Years()
	if err != nil {
		return nil, fmt.Errorf("list existing years: %w", err)
	}

	have := make(map[int]bool, len(existing))
	for _, y := range existing {
		have[y] = true
	}
	out := make([]int, 0, len(years))
	for _, y := range years {
		if !have[y] {
			out = append(out, y)
		}
	}
	return out, nil
}
