package quillfs

import (
	"os"
	"sync"

	"github.com/quill-build/quill/src/quillpath"
)

// TimestampCache memoises file mtimes for the duration of one engine
// run. Built on os.Lstat so symbolic links are never followed.
type TimestampCache struct {
	root  string
	mu    sync.Mutex
	cache map[quillpath.Path]float64
	ok    map[quillpath.Path]bool
}

// NewTimestampCache returns a cache resolving Local paths under root.
func NewTimestampCache(root string) *TimestampCache {
	return &TimestampCache{
		root:  root,
		cache: map[quillpath.Path]float64{},
		ok:    map[quillpath.Path]bool{},
	}
}

// Timestamp returns the mtime (as a Unix timestamp with sub-second
// precision) of p, memoised, or ok=false if the stat failed.
func (c *TimestampCache) Timestamp(p quillpath.Path) (mtime float64, ok bool) {
	c.mu.Lock()
	if v, seen := c.ok[p]; seen {
		defer c.mu.Unlock()
		return c.cache[p], v
	}
	c.mu.Unlock()

	disk := p.String()
	if p.Local() {
		disk = p.UnderBuildRoot(c.root)
	}
	info, err := os.Lstat(disk)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.ok[p] = false
		return 0, false
	}
	ts := float64(info.ModTime().UnixNano()) / 1e9
	c.cache[p] = ts
	c.ok[p] = true
	return ts, true
}

// Invalidate forces the next Timestamp call for p to re-stat.
func (c *TimestampCache) Invalidate(p quillpath.Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, p)
	delete(c.ok, p)
}

// MergeResult is the result of folding a merge function over a set of
// paths' timestamps.
type MergeResult struct {
	MissingFiles bool
	Limit        *float64
}

// MergeTimestamp folds merge over the timestamps of paths, reporting
// whether any path was missing.
func (c *TimestampCache) MergeTimestamp(paths []quillpath.Path, merge func(a, b float64) float64) MergeResult {
	var limit *float64
	missing := false
	for _, p := range paths {
		ts, ok := c.Timestamp(p)
		if !ok {
			missing = true
			continue
		}
		if limit == nil {
			v := ts
			limit = &v
		} else {
			v := merge(*limit, ts)
			limit = &v
		}
	}
	return MergeResult{MissingFiles: missing, Limit: limit}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// MinTimestamp specialises MergeTimestamp to the minimum timestamp.
func (c *TimestampCache) MinTimestamp(paths []quillpath.Path) MergeResult {
	return c.MergeTimestamp(paths, minF)
}

// MaxTimestamp specialises MergeTimestamp to the maximum timestamp.
func (c *TimestampCache) MaxTimestamp(paths []quillpath.Path) MergeResult {
	return c.MergeTimestamp(paths, maxF)
}
