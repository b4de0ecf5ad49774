package fileid

import "fmt"

// ID is a unique on-disk file identity (device ID + inode number). Two
// paths with equal IDs are the same underlying object, i.e. hardlinks of
// each other.
type ID struct {
	Device uint64
	Inode  uint64
}

// String returns a string representation of the ID.
func (id ID) String() string {
	return fmt.Sprintf("%d:%d", id.Device, id.Inode)
}

// Equal checks if two IDs are equal.
func (id ID) Equal(other ID) bool {
	return id.Device == other.Device && id.Inode == other.Inode
}

// Kind classifies a directory entry as far as the enumerator cares.
type Kind uint8

const (
	KindOther Kind = iota
	KindRegular
	KindDir
	KindSymlink
)

// Info is the subset of lstat metadata the engine needs, captured in a
// single syscall.
type Info struct {
	ID    ID
	Size  int64
	Nlink uint64
	Kind  Kind
}

func (i Info) IsRegular() bool { return i.Kind == KindRegular }
func (i Info) IsDir() bool     { return i.Kind == KindDir }
func (i Info) IsSymlink() bool { return i.Kind == KindSymlink }
