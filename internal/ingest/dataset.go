// Package ingest discovers document images on disk.
package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/common"
)

// LabelUnknown is the true label of an image outside any category directory.
const LabelUnknown = "unknown"

// Item is one image to process with its label taken from the path.
type Item struct {
	Path  string
	Label string
}

type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
}

// ListImages prefers the <root>/<category>/ layout and falls back to every image under root.
// Results are sorted by path within each category; limit > 0 truncates the list.
func ListImages(root string, limit int) ([]Item, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, fmt.Errorf("%w: dataset root is required", common.ErrInvalidInput)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, DirStats{}, fmt.Errorf("%w: dataset not found: %s", common.ErrInvalidInput, root)
		}
		return nil, DirStats{}, common.WrapError(err, "stat dataset")
	}
	if !info.IsDir() {
		return nil, DirStats{}, fmt.Errorf("%w: not a directory: %s", common.ErrInvalidInput, root)
	}

	var (
		paths []string
		stats DirStats
	)
	for _, c := range constants.AllCategories() {
		dir := filepath.Join(root, c.String())
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			continue
		}
		found, err := walkImages(dir, &stats)
		if err != nil {
			return nil, stats, err
		}
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		if paths, err = walkImages(root, &stats); err != nil {
			return nil, stats, err
		}
	}

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}
	items := make([]Item, 0, len(paths))
	for _, p := range paths {
		items = append(items, Item{Path: p, Label: LabelFromPath(p)})
	}
	return items, stats, nil
}

// walkImages returns the sorted image files under root, skipping hidden entries.
func walkImages(root string, stats *DirStats) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !constants.IsImageExt(filepath.Ext(path)) {
			stats.Skipped++
			return nil
		}
		stats.Matched++
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	slices.Sort(out)
	return out, nil
}

// LabelFromPath returns the first path segment naming a category, else LabelUnknown.
func LabelFromPath(path string) string {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if c, ok := constants.ParseCategory(part); ok && c.String() == part {
			return part
		}
	}
	return LabelUnknown
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
