package exec

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quill-build/quill/src/action"
	"github.com/quill-build/quill/src/arrow"
	"github.com/quill-build/quill/src/quillerr"
	"github.com/quill-build/quill/src/quillpath"
	"github.com/quill-build/quill/src/sexp"
)

// countingAction is a minimal action.Action used only by these tests:
// it records how many times it ran and writes fixed content to every
// target it's handed, so freshness decisions can be observed from
// outside the engine.
type countingAction struct {
	runs    *int32
	dir     quillpath.Path
	root    string
	content string
	targets []quillpath.Path
}

func (a countingAction) Sexp() sexp.Value { return sexp.Of("test-action", sexp.Atom(a.content)) }
func (a countingAction) Dir() quillpath.Path { return a.dir }
func (a countingAction) UpdatedFiles() map[quillpath.Path]struct{} { return nil }

func (a countingAction) Sandbox(root string, mapping map[quillpath.Path]quillpath.Path) action.Action {
	na := a
	na.root = root
	return na
}

func (a countingAction) Exec(ctx context.Context, targets []quillpath.Path) error {
	atomic.AddInt32(a.runs, 1)
	for _, t := range a.targets {
		if err := os.WriteFile(t.UnderBuildRoot(a.root), []byte(a.content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBasicRebuildWritesTargetOnce(t *testing.T) {
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	src := quillpath.NewExternal(filepath.Join(srcDir, "in.txt"))
	writeFile(t, src.String(), "hello")

	target := quillpath.New("out/result.txt")
	var runs int32
	e, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)

	build := arrow.Bind(arrow.Paths([]quillpath.Path{src}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](countingAction{
			runs: &runs, dir: quillpath.New("."), root: buildDir,
			content: "built", targets: []quillpath.Path{target},
		})
	})
	require.NoError(t, e.AddRule([]quillpath.Path{target}, build, false, false))

	require.NoError(t, e.DoBuild(context.Background(), []quillpath.Path{target}))
	assert.EqualValues(t, 1, runs)

	data, err := os.ReadFile(target.UnderBuildRoot(buildDir))
	require.NoError(t, err)
	assert.Equal(t, "built", string(data))
}

func TestUnchangedRuleIsNotRerunOnSecondProcess(t *testing.T) {
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	src := quillpath.NewExternal(filepath.Join(srcDir, "in.txt"))
	writeFile(t, src.String(), "hello")
	target := quillpath.New("out/result.txt")

	newRule := func(runs *int32) arrow.Node[action.Action] {
		return arrow.Bind(arrow.Paths([]quillpath.Path{src}), func(struct{}) arrow.Node[action.Action] {
			return arrow.Return[action.Action](countingAction{
				runs: runs, dir: quillpath.New("."), root: buildDir,
				content: "built", targets: []quillpath.Path{target},
			})
		})
	}

	var firstRuns int32
	e1, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	require.NoError(t, e1.AddRule([]quillpath.Path{target}, newRule(&firstRuns), false, false))
	require.NoError(t, e1.DoBuild(context.Background(), []quillpath.Path{target}))
	require.NoError(t, e1.DumpTrace())
	require.EqualValues(t, 1, firstRuns)

	// A second engine instance reloads the persisted trace, simulating a
	// fresh process. The rule is byte-identical, dependency and target
	// timestamps haven't moved, so the action must not rerun.
	var secondRuns int32
	e2, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	require.NoError(t, e2.AddRule([]quillpath.Path{target}, newRule(&secondRuns), false, false))
	require.NoError(t, e2.DoBuild(context.Background(), []quillpath.Path{target}))
	assert.EqualValues(t, 0, secondRuns)
}

func TestRuleHashChangeTriggersRebuild(t *testing.T) {
	buildDir := t.TempDir()
	srcDir := t.TempDir()
	src := quillpath.NewExternal(filepath.Join(srcDir, "in.txt"))
	writeFile(t, src.String(), "hello")
	target := quillpath.New("out/result.txt")

	var firstRuns int32
	e1, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	build1 := arrow.Bind(arrow.Paths([]quillpath.Path{src}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](countingAction{
			runs: &firstRuns, dir: quillpath.New("."), root: buildDir,
			content: "v1", targets: []quillpath.Path{target},
		})
	})
	require.NoError(t, e1.AddRule([]quillpath.Path{target}, build1, false, false))
	require.NoError(t, e1.DoBuild(context.Background(), []quillpath.Path{target}))
	require.NoError(t, e1.DumpTrace())

	// Second process, same target and deps, but the action's own content
	// differs - its Sexp changes, so its digest changes, so the rule
	// reruns even though no file timestamp would have forced it to.
	var secondRuns int32
	e2, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	build2 := arrow.Bind(arrow.Paths([]quillpath.Path{src}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](countingAction{
			runs: &secondRuns, dir: quillpath.New("."), root: buildDir,
			content: "v2", targets: []quillpath.Path{target},
		})
	})
	require.NoError(t, e2.AddRule([]quillpath.Path{target}, build2, false, false))
	require.NoError(t, e2.DoBuild(context.Background(), []quillpath.Path{target}))
	assert.EqualValues(t, 1, secondRuns)

	data, err := os.ReadFile(target.UnderBuildRoot(buildDir))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCycleDiagnosticNamesBothFiles(t *testing.T) {
	buildDir := t.TempDir()
	a := quillpath.New("a.txt")
	b := quillpath.New("b.txt")
	var runs int32

	buildA := arrow.Bind(arrow.Paths([]quillpath.Path{b}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](countingAction{runs: &runs, dir: quillpath.New("."), root: buildDir})
	})
	buildB := arrow.Bind(arrow.Paths([]quillpath.Path{a}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](countingAction{runs: &runs, dir: quillpath.New("."), root: buildDir})
	})

	e, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	require.NoError(t, e.AddRule([]quillpath.Path{a}, buildA, false, false))
	require.NoError(t, e.AddRule([]quillpath.Path{b}, buildB, false, false))

	err = e.DoBuild(context.Background(), []quillpath.Path{a})
	require.Error(t, err)

	var cycleErr *quillerr.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, a, cycleErr.Path[0])
	assert.Contains(t, cycleErr.Path, b)
}

func TestSandboxRejectsUndeclaredDependency(t *testing.T) {
	buildDir := t.TempDir()
	writeFile(t, filepath.Join(buildDir, "declared.txt"), "ok")
	writeFile(t, filepath.Join(buildDir, "undeclared.txt"), "secret")
	target := quillpath.New("out/result.txt")
	declared := quillpath.New("declared.txt")

	build := arrow.Bind(arrow.Paths([]quillpath.Path{declared}), func(struct{}) arrow.Node[action.Action] {
		return arrow.Return[action.Action](action.Shell{
			Command: "cat undeclared.txt > out/result.txt",
			WorkDir: quillpath.New("."),
			Root:    buildDir,
		})
	})

	// declared.txt is itself a target, so it is realised and staged into
	// the sandbox; undeclared.txt is not, so the sandboxed read fails.
	var depRuns int32
	declaredBuild := arrow.Return[action.Action](countingAction{
		runs: &depRuns, dir: quillpath.New("."), root: buildDir,
		content: "ok", targets: []quillpath.Path{declared},
	})

	e, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	require.NoError(t, e.AddRule([]quillpath.Path{declared}, declaredBuild, false, false))
	require.NoError(t, e.AddRule([]quillpath.Path{target}, build, true, false))

	err = e.DoBuild(context.Background(), []quillpath.Path{target})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "undeclared.txt")
}

func TestAddRuleRejectsOverrideWithoutFlag(t *testing.T) {
	buildDir := t.TempDir()
	target := quillpath.New("out/result.txt")
	var runs int32
	build := arrow.Return[action.Action](countingAction{runs: &runs, dir: quillpath.New("."), root: buildDir})

	e, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	require.NoError(t, e.AddRule([]quillpath.Path{target}, build, false, false))
	err = e.AddRule([]quillpath.Path{target}, build, false, false)
	require.Error(t, err)

	require.NoError(t, e.AddRule([]quillpath.Path{target}, build, false, true))
}

func TestClosePendingTargetsRemovesUnfinishedOutput(t *testing.T) {
	buildDir := t.TempDir()
	target := quillpath.New("partial.txt")
	writeFile(t, target.UnderBuildRoot(buildDir), "half-written")

	e, err := New(Context{BuildDir: buildDir})
	require.NoError(t, err)
	e.pending.add([]quillpath.Path{target})

	require.NoError(t, e.Close())
	_, statErr := os.Stat(target.UnderBuildRoot(buildDir))
	assert.True(t, os.IsNotExist(statErr))
}
