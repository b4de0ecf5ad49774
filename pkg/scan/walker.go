package scan

import (
	"os"
	"path/filepath"

	"github.com/dlclark/regexp2"
	"github.com/expr-lang/expr/vm"
	"github.com/scylladb/go-set/strset"

	"github.com/lndup/lndup/pkg/fileid"
	"github.com/lndup/lndup/pkg/logger"
	"github.com/lndup/lndup/pkg/targets"
)

// File is one hardlink candidate produced by enumeration.
type File struct {
	Path string
	Size int64
	ID   fileid.ID
}

// Walker recursively enumerates one set's roots. Symlinks and special
// files are skipped silently; unreadable subtrees are reported through
// OnProblem and skipped; the walk itself never fails.
type Walker struct {
	Excludes  []*regexp2.Regexp
	Filter    *vm.Program
	OnProblem func(path string, err error)
}

var log = logger.GetLogger("scan")

// Walk emits every candidate file under set's roots in path order.
// Directories are tracked by (device, inode) per set so bind-mount or
// hardlinked-directory cycles terminate.
func (w *Walker) Walk(set targets.Set, emit func(File)) {
	visited := strset.New()

	for _, root := range set.Roots {
		if w.excluded(root.Path) {
			log.Debugf("Skipping excluded target: %q", root.Path)
			continue
		}
		if !root.Dir {
			w.emitRegular(File{Path: root.Path, Size: root.Size, ID: root.ID}, emit)
			continue
		}
		w.walkDir(set, root.Path, root.ID, visited, emit)
	}
}

func (w *Walker) walkDir(set targets.Set, dir string, id fileid.ID, visited *strset.Set, emit func(File)) {
	key := id.String()
	if visited.Has(key) {
		log.Tracef("Already visited %q, skipping", dir)
		return
	}
	visited.Add(key)

	// os.ReadDir sorts by filename, which keeps enumeration order
	// independent of directory layout on disk
	entries, err := os.ReadDir(dir)
	if err != nil {
		w.problem(dir, err)
		return
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		info, err := fileid.Lstat(path)
		if err != nil {
			w.problem(path, err)
			continue
		}

		switch {
		case info.IsSymlink():
			log.Tracef("Skipping symlink: %q", path)
		case info.IsDir():
			if w.excluded(path) {
				log.Debugf("Skipping excluded subtree: %q", path)
				continue
			}
			if info.ID.Device != set.Device {
				log.Debugf("Skipping mount point: %q (device %d)", path, info.ID.Device)
				continue
			}
			w.walkDir(set, path, info.ID, visited, emit)
		case info.IsRegular():
			if info.ID.Device != set.Device {
				log.Debugf("Skipping cross-device file: %q (device %d)", path, info.ID.Device)
				continue
			}
			if w.excluded(path) {
				log.Tracef("Skipping excluded file: %q", path)
				continue
			}
			w.emitRegular(File{Path: path, Size: info.Size, ID: info.ID}, emit)
		default:
			log.Tracef("Skipping special file: %q", path)
		}
	}
}

func (w *Walker) emitRegular(f File, emit func(File)) {
	if w.Filter != nil {
		keep, err := RunFilter(w.Filter, f)
		if err != nil {
			w.problem(f.Path, err)
			return
		}
		if !keep {
			log.Tracef("Filter rejected: %q", f.Path)
			return
		}
	}
	emit(f)
}

func (w *Walker) excluded(path string) bool {
	for _, pattern := range w.Excludes {
		match, err := pattern.MatchString(path)
		if err != nil {
			continue
		}
		if match {
			return true
		}
	}
	return false
}

func (w *Walker) problem(path string, err error) {
	if w.OnProblem != nil {
		w.OnProblem(path, err)
	}
}
