//go:build windows

package fileid

import (
	"fmt"
	"os"
	"reflect"
	"syscall"
)

// Lstat returns the identity and metadata of path without following
// symlinks. On Windows the stable identity comes from
// GetFileInformationByHandle: Device = volume serial number,
// Inode = (FileIndexHigh << 32) | FileIndexLow.
func Lstat(path string) (Info, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return Info{}, fmt.Errorf("lstat file: %w", err)
	}

	info := Info{
		Size: fi.Size(),
		Kind: kindOf(fi),
	}

	pathp, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return Info{}, fmt.Errorf("convert path to UTF16: %w", err)
	}

	attrs := uint32(syscall.FILE_FLAG_BACKUP_SEMANTICS)
	if info.Kind == KindSymlink {
		// Use FILE_FLAG_OPEN_REPARSE_POINT, otherwise CreateFile will follow symlink.
		// See https://docs.microsoft.com/en-us/windows/desktop/FileIO/symbolic-link-effects-on-file-systems-functions#createfile-and-createfiletransacted
		attrs |= syscall.FILE_FLAG_OPEN_REPARSE_POINT
	}

	h, err := syscall.CreateFile(pathp, 0, 0, nil, syscall.OPEN_EXISTING, attrs, 0)
	if err != nil {
		return Info{}, fmt.Errorf("open file: %w", err)
	}
	defer syscall.CloseHandle(h)

	var bhfi syscall.ByHandleFileInformation
	if err := syscall.GetFileInformationByHandle(h, &bhfi); err != nil {
		return Info{}, fmt.Errorf("get file info: %w", err)
	}

	info.ID = ID{
		Device: uint64(bhfi.VolumeSerialNumber),
		Inode:  (uint64(bhfi.FileIndexHigh) << 32) | uint64(bhfi.FileIndexLow),
	}
	info.Nlink = uint64(bhfi.NumberOfLinks)

	return info, nil
}

func kindOf(fi os.FileInfo) Kind {
	switch {
	case isSymlink(fi):
		return KindSymlink
	case fi.IsDir():
		return KindDir
	case fi.Mode().IsRegular():
		return KindRegular
	default:
		return KindOther
	}
}

func isSymlink(fi os.FileInfo) bool {
	// Use instructions described at
	// https://devblogs.microsoft.com/oldnewthing/20100212-00/?p=14963
	// to recognize whether it's a symlink.
	if fi.Sys().(*syscall.Win32FileAttributeData).FileAttributes&syscall.FILE_ATTRIBUTE_REPARSE_POINT == 0 {
		return false
	}

	v := reflect.Indirect(reflect.ValueOf(fi))
	reserved0 := v.FieldByName("Reserved0").Uint()

	return reserved0 == syscall.IO_REPARSE_TAG_SYMLINK ||
		reserved0 == 0xA0000003
}
