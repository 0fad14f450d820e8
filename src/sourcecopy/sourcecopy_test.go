package sourcecopy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/exec"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
)

func TestSynthesizeRegistersOneCopyPerSource(t *testing.T) {
	reg := registry.New()
	buildRoot := t.TempDir()
	srcDir := t.TempDir()

	src := quillpath.NewExternal(filepath.Join(srcDir, "main.txt"))
	require.NoError(t, os.WriteFile(src.String(), []byte("hi"), 0o644))

	require.NoError(t, Synthesize(exec.Context{Name: "default", BuildDir: buildRoot}, []quillpath.Path{src}, reg))
	assert.Equal(t, 1, len(reg.AllTargets()))
}

func TestSynthesizeSkipsAlreadyRegisteredTarget(t *testing.T) {
	reg := registry.New()
	buildRoot := t.TempDir()
	srcDir := t.TempDir()
	src := quillpath.NewExternal(filepath.Join(srcDir, "main.txt"))
	require.NoError(t, os.WriteFile(src.String(), []byte("hi"), 0o644))

	local := localMirror(src)
	existing := &registry.Rule{Targets: []quillpath.Path{local}, Build: arrow.Return[action.Action](nil)}
	require.NoError(t, reg.AddRule([]quillpath.Path{local}, existing, false))

	require.NoError(t, Synthesize(exec.Context{Name: "default", BuildDir: buildRoot}, []quillpath.Path{src}, reg))

	found, _ := reg.Find(local)
	assert.Same(t, existing, found)
}
