package scan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lndup/lndup/pkg/config"
	"github.com/lndup/lndup/pkg/targets"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func resolveSet(t *testing.T, paths ...string) targets.Set {
	t.Helper()
	cfg := config.Defaults()
	cfg.Targets = paths

	sets, err := targets.Resolve(cfg)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	return sets[0]
}

func collect(w *Walker, set targets.Set) []File {
	var files []File
	w.Walk(set, func(f File) {
		files = append(files, f)
	})
	return files
}

func TestWalker_EmitsRegularFilesInPathOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.txt"), "bb")
	writeFile(t, filepath.Join(dir, "a.txt"), "aaaaa")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "cc")
	require.NoError(t, os.Symlink(filepath.Join(dir, "a.txt"), filepath.Join(dir, "link")))

	set := resolveSet(t, dir)
	root := set.Roots[0].Path

	files := collect(&Walker{}, set)
	require.Len(t, files, 3)

	assert.Equal(t, filepath.Join(root, "a.txt"), files[0].Path)
	assert.Equal(t, filepath.Join(root, "b.txt"), files[1].Path)
	assert.Equal(t, filepath.Join(root, "sub", "c.txt"), files[2].Path)

	assert.Equal(t, int64(5), files[0].Size)
	assert.Equal(t, set.Device, files[0].ID.Device)
	assert.NotZero(t, files[0].ID.Inode)
}

func TestWalker_SkipsExcludedSubtree(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "x")
	writeFile(t, filepath.Join(dir, "sub", "drop.txt"), "y")

	excludes, err := CompileExcludes([]string{`sub$`})
	require.NoError(t, err)

	set := resolveSet(t, dir)
	files := collect(&Walker{Excludes: excludes}, set)

	require.Len(t, files, 1)
	assert.Equal(t, "keep.txt", filepath.Base(files[0].Path))
}

func TestWalker_SkipsExcludedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "keep.txt"), "x")
	writeFile(t, filepath.Join(dir, "drop.bak"), "y")

	excludes, err := CompileExcludes([]string{`\.bak$`})
	require.NoError(t, err)

	set := resolveSet(t, dir)
	files := collect(&Walker{Excludes: excludes}, set)

	require.Len(t, files, 1)
	assert.Equal(t, "keep.txt", filepath.Base(files[0].Path))
}

func TestWalker_AppliesFilter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "big.bin"), "aaaaa")
	writeFile(t, filepath.Join(dir, "small.bin"), "a")

	program, err := CompileFilter(`Size >= 3`)
	require.NoError(t, err)

	set := resolveSet(t, dir)
	files := collect(&Walker{Filter: program}, set)

	require.Len(t, files, 1)
	assert.Equal(t, "big.bin", filepath.Base(files[0].Path))
}

func TestWalker_OverlappingRootsEmitOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "cc")

	set := resolveSet(t, dir, filepath.Join(dir, "sub"))
	require.Len(t, set.Roots, 2)

	files := collect(&Walker{}, set)
	assert.Len(t, files, 1)
}

func TestWalker_RegularFileRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "solo.txt")
	writeFile(t, path, "solo")

	set := resolveSet(t, path)
	require.False(t, set.Roots[0].Dir)

	files := collect(&Walker{}, set)
	require.Len(t, files, 1)
	assert.Equal(t, int64(4), files[0].Size)
}

func TestWalker_ReportsUnreadableSubtree(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone")
	writeFile(t, filepath.Join(gone, "f.txt"), "x")

	set := resolveSet(t, gone)
	require.NoError(t, os.RemoveAll(gone))

	var problems []string
	w := &Walker{OnProblem: func(path string, err error) {
		require.Error(t, err)
		problems = append(problems, path)
	}}

	files := collect(w, set)
	assert.Empty(t, files)
	assert.Equal(t, []string{set.Roots[0].Path}, problems)
}
