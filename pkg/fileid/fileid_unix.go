//go:build !windows

package fileid

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Lstat returns the identity and metadata of path without following
// symlinks. This uses a direct unix.Lstat() instead of os.Lstat() so one
// syscall yields device, inode, link count, size and type.
func Lstat(path string) (Info, error) {
	var stat unix.Stat_t
	if err := unix.Lstat(path, &stat); err != nil {
		return Info{}, fmt.Errorf("lstat file: %w", err)
	}

	return Info{
		ID: ID{
			Device: uint64(stat.Dev),
			Inode:  uint64(stat.Ino),
		},
		Size:  stat.Size,
		Nlink: uint64(stat.Nlink),
		Kind:  kindOf(uint32(stat.Mode)),
	}, nil
}

func kindOf(mode uint32) Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return KindRegular
	case unix.S_IFDIR:
		return KindDir
	case unix.S_IFLNK:
		return KindSymlink
	default:
		return KindOther
	}
}
