package action

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-build/quill/src/quillpath"
)

func TestCopyExec(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))

	c := Copy{From: quillpath.New("a.txt"), To: quillpath.New("out/b.txt"), WorkDir: quillpath.New("."), Root: root}
	require.NoError(t, c.Exec(context.Background(), nil))

	data, err := os.ReadFile(filepath.Join(root, "out", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCopySandboxRemapsLocalOnly(t *testing.T) {
	c := Copy{From: quillpath.New("a.txt"), To: quillpath.New("b.txt"), WorkDir: quillpath.New("."), Root: "/root"}
	mapping := map[quillpath.Path]quillpath.Path{
		quillpath.New("a.txt"): quillpath.New("sandbox/a.txt"),
	}
	sandboxed := c.Sandbox("/sandbox", mapping).(Copy)
	assert.Equal(t, quillpath.New("sandbox/a.txt"), sandboxed.From)
	assert.Equal(t, quillpath.New("b.txt"), sandboxed.To)
	assert.Equal(t, "/sandbox", sandboxed.Root)
}

func TestShellExecFailureIncludesOutput(t *testing.T) {
	root := t.TempDir()
	s := Shell{Command: "echo boom 1>&2; exit 1", WorkDir: quillpath.New("."), Root: root}
	err := s.Exec(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestShellExecSuccess(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "out.txt"), nil, 0o644))
	s := Shell{Command: "echo hi > out.txt", WorkDir: quillpath.New("."), Root: root}
	require.NoError(t, s.Exec(context.Background(), nil))
	data, err := os.ReadFile(filepath.Join(root, "out.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}
