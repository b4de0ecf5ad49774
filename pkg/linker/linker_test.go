package linker

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lndup/lndup/pkg/fileid"
	"github.com/lndup/lndup/pkg/scan"
	"github.com/lndup/lndup/pkg/verify"
)

func member(path string, inode uint64) scan.File {
	return scan.File{Path: path, Size: 10, ID: fileid.ID{Device: 7, Inode: inode}}
}

func TestPlanClass(t *testing.T) {
	class := verify.Class{
		Size: 10,
		Members: []scan.File{
			member("/d/a", 1),
			member("/d/b", 1), // already linked to the representative
			member("/d/c", 2),
			member("/d/d", 3),
		},
	}

	ops := PlanClass(class)

	require.Len(t, ops, 2)
	assert.Equal(t, Operation{Keep: "/d/a", Replace: "/d/c", Size: 10, Device: 7}, ops[0])
	assert.Equal(t, Operation{Keep: "/d/a", Replace: "/d/d", Size: 10, Device: 7}, ops[1])
}

func TestPlanClass_AllMembersShareRepresentativeInode(t *testing.T) {
	class := verify.Class{
		Size: 10,
		Members: []scan.File{
			member("/d/a", 1),
			member("/d/b", 1),
		},
	}

	assert.Empty(t, PlanClass(class))
}

func statFile(t *testing.T, path string) fileid.Info {
	t.Helper()
	info, err := fileid.Lstat(path)
	require.NoError(t, err)
	return info
}

func TestExecute_ReplacesWithHardlink(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep")
	replace := filepath.Join(dir, "replace")
	require.NoError(t, os.WriteFile(keep, []byte("kept content"), 0o644))
	require.NoError(t, os.WriteFile(replace, []byte("same length!"), 0o644))

	err := Execute(Operation{Keep: keep, Replace: replace, Size: 12})
	require.NoError(t, err)

	assert.Equal(t, statFile(t, keep).ID, statFile(t, replace).ID)
	assert.Equal(t, uint64(2), statFile(t, keep).Nlink)

	content, err := os.ReadFile(replace)
	require.NoError(t, err)
	assert.Equal(t, "kept content", string(content))
}

func TestExecute_LeavesNoTemporaryLinks(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep")
	replace := filepath.Join(dir, "replace")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(replace, []byte("x"), 0o644))

	require.NoError(t, Execute(Operation{Keep: keep, Replace: replace, Size: 1}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".lndup-")
	}
}

func TestExecute_MissingKeepFails(t *testing.T) {
	dir := t.TempDir()
	replace := filepath.Join(dir, "replace")
	require.NoError(t, os.WriteFile(replace, []byte("x"), 0o644))

	err := Execute(Operation{Keep: filepath.Join(dir, "missing"), Replace: replace, Size: 1})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCrossDevice)

	// the original is untouched
	content, readErr := os.ReadFile(replace)
	require.NoError(t, readErr)
	assert.Equal(t, "x", string(content))
}

func TestExecute_CrossDeviceLinkFailure(t *testing.T) {
	orig := linkFile
	linkFile = func(oldname, newname string) error {
		return &os.LinkError{Op: "link", Old: oldname, New: newname, Err: syscall.EXDEV}
	}
	t.Cleanup(func() { linkFile = orig })

	err := Execute(Operation{Keep: "/d/keep", Replace: "/d/replace", Size: 1, Device: 7})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCrossDevice)
}

func TestExecute_RenameFailureCleansUpTemporaryLink(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep")
	replace := filepath.Join(dir, "replace")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))
	// a directory at the replace path makes the rename fail after linking
	require.NoError(t, os.Mkdir(replace, 0o755))

	err := Execute(Operation{Keep: keep, Replace: replace, Size: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rename")

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	for _, entry := range entries {
		assert.NotContains(t, entry.Name(), ".lndup-")
	}
	assert.Equal(t, uint64(1), statFile(t, keep).Nlink)
}

func TestExecute_MissingReplaceParentFails(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	err := Execute(Operation{Keep: keep, Replace: filepath.Join(dir, "nosuch", "replace"), Size: 1})
	assert.Error(t, err)
}

func TestLinkTemp_NamesStayBesideTarget(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "keep")
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0o644))

	tmp, err := linkTemp(keep, filepath.Join(dir, "replace"))
	require.NoError(t, err)
	defer os.Remove(tmp)

	assert.Equal(t, dir, filepath.Dir(tmp))
	assert.True(t, strings.HasPrefix(filepath.Base(tmp), ".replace.lndup-"))
	assert.Equal(t, statFile(t, keep).ID, statFile(t, tmp).ID)
}
