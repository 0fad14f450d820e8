package quillfs

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-build/quill/src/quillpath"
)

func TestEnsureDirAndFileExists(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c.txt")
	require.NoError(t, EnsureDir(target))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))
	assert.True(t, FileExists(target))
	assert.True(t, PathExists(filepath.Dir(target)))
	assert.False(t, FileExists(filepath.Dir(target)))
}

func TestTimestampCacheMemoises(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	tc := NewTimestampCache(root)
	p := quillpath.New("a.txt")
	ts1, ok := tc.Timestamp(p)
	require.True(t, ok)

	// Touch the file after the cache is warm; memoised value should stick.
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, os.Chtimes(filepath.Join(root, "a.txt"), time.Now(), time.Now()))
	ts2, ok := tc.Timestamp(p)
	require.True(t, ok)
	assert.Equal(t, ts1, ts2)

	tc.Invalidate(p)
	ts3, ok := tc.Timestamp(p)
	require.True(t, ok)
	assert.NotEqual(t, ts1, ts3)
}

func TestTimestampMissingFile(t *testing.T) {
	tc := NewTimestampCache(t.TempDir())
	_, ok := tc.Timestamp(quillpath.New("missing.txt"))
	assert.False(t, ok)
}

func TestMinMaxTimestamp(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))
	tc := NewTimestampCache(root)

	res := tc.MinTimestamp([]quillpath.Path{quillpath.New("a.txt"), quillpath.New("missing.txt")})
	assert.True(t, res.MissingFiles)
	require.NotNil(t, res.Limit)
}

func TestTargetIndexGlobAndExists(t *testing.T) {
	targets := []quillpath.Path{quillpath.New("out/a.txt"), quillpath.New("out/b.log"), quillpath.New("other/c.txt")}
	idx := NewTargetIndex(func() []quillpath.Path { return targets })

	assert.True(t, idx.IsTarget(quillpath.New("out/a.txt")))
	assert.False(t, idx.IsTarget(quillpath.New("out/zzz.txt")))

	re := regexp.MustCompile(`\.txt$`)
	matches := idx.Glob(quillpath.New("out"), re)
	require.Len(t, matches, 1)
	assert.Equal(t, quillpath.New("out/a.txt"), matches[0])
}

func TestTargetIndexGlobEmptyDirNoError(t *testing.T) {
	idx := NewTargetIndex(func() []quillpath.Path { return nil })
	matches := idx.Glob(quillpath.New("nowhere"), regexp.MustCompile(`.*`))
	assert.Empty(t, matches)
}
