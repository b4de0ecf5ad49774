package linker

import (
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"

	"github.com/lndup/lndup/pkg/verify"
)

// Operation replaces Replace with a hardlink to Keep. Recorded whether or
// not the run mutates anything.
type Operation struct {
	Keep    string
	Replace string
	Size    int64
	Device  uint64
}

// ErrCrossDevice marks a link attempt that crossed filesystem devices.
// Set resolution guarantees this cannot happen, so hitting it at link
// time is plan corruption and fatal for the whole set.
var ErrCrossDevice = errors.New("cross-device link attempt")

// linkFile is os.Link, swappable in tests.
var linkFile = os.Link

// PlanClass converts one equivalence class into link operations. The
// representative is the lexicographically smallest member path; members
// already sharing its inode yield nothing. Operations come out ordered by
// replace path.
func PlanClass(class verify.Class) []Operation {
	rep := class.Members[0]

	ops := make([]Operation, 0, len(class.Members)-1)
	for _, m := range class.Members[1:] {
		if m.ID.Equal(rep.ID) {
			continue
		}
		ops = append(ops, Operation{
			Keep:    rep.Path,
			Replace: m.Path,
			Size:    class.Size,
			Device:  rep.ID.Device,
		})
	}

	return ops
}

// Execute performs one link operation: link the kept file to a temporary
// name beside the target, then rename over the target. The original is
// never removed before its replacement exists; a failed rename leaves at
// worst an orphaned temporary link, which is cleaned up here.
func Execute(op Operation) error {
	tmp, err := linkTemp(op.Keep, op.Replace)
	if err != nil {
		if errors.Is(err, syscall.EXDEV) {
			return errors.Wrapf(ErrCrossDevice, "link %q to %q", op.Replace, op.Keep)
		}
		return errors.Wrapf(err, "link %q to %q", op.Replace, op.Keep)
	}

	if err := os.Rename(tmp, op.Replace); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil {
			return errors.Wrapf(err, "rename %q (orphaned temporary link: %v)", tmp, rmErr)
		}
		return errors.Wrapf(err, "rename %q", tmp)
	}

	return nil
}

// linkTemp creates the hardlink under a random dot-name next to replace,
// retrying a few names on collision.
func linkTemp(keep, replace string) (string, error) {
	dir, base := filepath.Split(replace)

	for attempt := 0; attempt < 10; attempt++ {
		tmp := filepath.Join(dir, fmt.Sprintf(".%s.lndup-%08x", base, rand.Uint32()))
		err := linkFile(keep, tmp)
		if err == nil {
			return tmp, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
	}

	return "", errors.Errorf("no free temporary name beside %q", replace)
}
