package closure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/quillerr"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/registry"
)

func addDummyRule(t *testing.T, reg *registry.Registry, target quillpath.Path, build arrow.Node[action.Action]) {
	t.Helper()
	require.NoError(t, reg.AddRule([]quillpath.Path{target}, &registry.Rule{Targets: []quillpath.Path{target}, Build: build}, false))
}

func TestClosureCollectsTransitiveFiles(t *testing.T) {
	reg := registry.New()
	leaf := quillpath.New("leaf.txt")
	mid := quillpath.New("mid.txt")
	top := quillpath.New("top.txt")

	addDummyRule(t, reg, mid, arrow.Bind(arrow.Paths([]quillpath.Path{leaf}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](nil)
	}))
	addDummyRule(t, reg, top, arrow.Bind(arrow.Paths([]quillpath.Path{mid}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](nil)
	}))

	result, err := Closure(reg, []quillpath.Path{top})
	require.NoError(t, err)
	assert.Contains(t, result.Files, top)
	assert.Contains(t, result.Files, mid)
	assert.Contains(t, result.Files, leaf)
}

func TestClosureDetectsCycle(t *testing.T) {
	reg := registry.New()
	a := quillpath.New("a.txt")
	b := quillpath.New("b.txt")

	addDummyRule(t, reg, a, arrow.Bind(arrow.Paths([]quillpath.Path{b}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](nil)
	}))
	addDummyRule(t, reg, b, arrow.Bind(arrow.Paths([]quillpath.Path{a}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](nil)
	}))

	_, err := Closure(reg, []quillpath.Path{a})
	require.Error(t, err)
	var cycleErr *quillerr.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, cycleErr.Path, a)
	assert.Contains(t, cycleErr.Path, b)
}

func TestAggregateLibDepsGroupsByContext(t *testing.T) {
	reg := registry.New()
	target := quillpath.New("ctxA/out.txt")
	build := arrow.Bind(
		arrow.RecordLibDeps(quillpath.New("ctxA/out.txt").Dir(), []quillpath.Path{quillpath.New("ctxA/lib.a")}),
		func(struct{}) arrow.Node[action.Action] { return arrow.Return[action.Action](nil) },
	)
	addDummyRule(t, reg, target, build)

	result, err := Closure(reg, []quillpath.Path{target})
	require.NoError(t, err)

	grouped := AggregateLibDeps(result, true)
	assert.Contains(t, grouped["ctxA"], quillpath.New("ctxA/lib.a"))

	flat := AggregateLibDeps(result, false)
	assert.Contains(t, flat["*"], quillpath.New("ctxA/lib.a"))
}
