package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/joseph-ayodele/docparse/internal/common"
)

// ContentHash returns the hex sha256 of a file.
func ContentHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", common.WrapError(err, "open for hash")
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", common.WrapError(err, "hash")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Dedup remembers content hashes already seen.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]string)}
}

// First reports whether path's content has not been seen before and remembers it.
// The second return is the earlier path when it is a duplicate.
func (d *Dedup) First(path string) (bool, string, error) {
	sum, err := ContentHash(path)
	if err != nil {
		return false, "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if prev, ok := d.seen[sum]; ok {
		return false, prev, nil
	}
	d.seen[sum] = path
	return true, "", nil
}
