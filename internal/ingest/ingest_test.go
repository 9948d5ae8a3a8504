package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/docparse/internal/common"
)

func touch(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestListImagesCategoryLayout(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "receipt", "b.png"), "1")
	touch(t, filepath.Join(root, "receipt", "a.JPG"), "2")
	touch(t, filepath.Join(root, "email", "nested", "m.tiff"), "3")
	touch(t, filepath.Join(root, "email", "notes.txt"), "4")
	touch(t, filepath.Join(root, "email", ".hidden.png"), "5")
	touch(t, filepath.Join(root, "misc", "ignored.png"), "6")

	items, stats, err := ListImages(root, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, Item{Path: filepath.Join(root, "email", "nested", "m.tiff"), Label: "email"}, items[0])
	assert.Equal(t, Item{Path: filepath.Join(root, "receipt", "a.JPG"), Label: "receipt"}, items[1])
	assert.Equal(t, "receipt", items[2].Label)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(1), stats.Skipped)

	limited, _, err := ListImages(root, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListImagesFallsBackToRecursiveWalk(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "scans", "x.webp"), "1")
	touch(t, filepath.Join(root, "top.bmp"), "2")
	touch(t, filepath.Join(root, ".git", "obj.png"), "3")

	items, _, err := ListImages(root, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, LabelUnknown, items[0].Label)
	assert.Equal(t, LabelUnknown, items[1].Label)
}

func TestListImagesErrors(t *testing.T) {
	_, _, err := ListImages("", 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = ListImages(filepath.Join(t.TempDir(), "missing"), 0)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestLabelFromPath(t *testing.T) {
	tests := map[string]string{
		"dataset/email/1.jpg":          "email",
		"/data/invoice/2024/x.png":     "invoice",
		"dataset/receipts/r.png":       LabelUnknown,
		"dataset/News/n.png":           LabelUnknown,
		"news.png":                     LabelUnknown,
		"dataset/news/receipt/odd.png": "news",
	}
	for in, want := range tests {
		assert.Equal(t, want, LabelFromPath(in), in)
	}
}

func TestDedup(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.png")
	b := filepath.Join(dir, "b.png")
	c := filepath.Join(dir, "c.png")
	touch(t, a, "same")
	touch(t, b, "same")
	touch(t, c, "other")

	d := NewDedup()
	first, _, err := d.First(a)
	require.NoError(t, err)
	assert.True(t, first)

	first, prev, err := d.First(b)
	require.NoError(t, err)
	assert.False(t, first)
	assert.Equal(t, a, prev)

	first, _, err = d.First(c)
	require.NoError(t, err)
	assert.True(t, first)

	_, _, err = d.First(filepath.Join(dir, "nope.png"))
	assert.Error(t, err)
}

func TestWatchEmitsNewImages(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "existing.png"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "existing.png"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("initial scan did not emit")
	}

	touch(t, filepath.Join(root, "notes.txt"), "ignored")
	touch(t, filepath.Join(root, "new.jpg"), "y")

	select {
	case p := <-events:
		assert.Equal(t, filepath.Join(root, "new.jpg"), p)
	case <-time.After(5 * time.Second):
		t.Fatal("new image not emitted")
	}

	cancel()
	for range events {
	}
}

func TestWatchRequiresRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{}, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
