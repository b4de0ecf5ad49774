package verify

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	// register the canonical digest algorithm
	_ "crypto/sha256"

	"github.com/opencontainers/go-digest"
)

var bufferPool = &sync.Pool{
	New: func() interface{} {
		buffer := make([]byte, 32*1024)
		return &buffer
	},
}

// digestPath streams path through the canonical digest algorithm in
// bounded chunks; memory use is independent of file size.
func digestPath(path string) (digest.Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(buf)

	digester := digest.Canonical.Digester()
	if _, err := io.CopyBuffer(digester.Hash(), f, *buf); err != nil {
		return "", err
	}

	return digester.Digest(), nil
}

// samePayload compares two files chunk by chunk. The files are expected
// to be the same size; diverging stream lengths count as unequal (the
// file changed underneath the run).
func samePayload(a, b string) (bool, error) {
	fa, err := os.Open(a)
	if err != nil {
		return false, err
	}
	defer fa.Close()

	fb, err := os.Open(b)
	if err != nil {
		return false, err
	}
	defer fb.Close()

	abuf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(abuf)
	bbuf := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bbuf)

	for {
		na, errA := io.ReadFull(fa, *abuf)
		nb, errB := io.ReadFull(fb, *bbuf)

		if errA != nil && !errors.Is(errA, io.EOF) && !errors.Is(errA, io.ErrUnexpectedEOF) {
			return false, errA
		}
		if errB != nil && !errors.Is(errB, io.EOF) && !errors.Is(errB, io.ErrUnexpectedEOF) {
			return false, errB
		}

		if na != nb || !bytes.Equal((*abuf)[:na], (*bbuf)[:nb]) {
			return false, nil
		}
		if errA != nil || errB != nil {
			// both streams ended on the same byte
			return true, nil
		}
	}
}

// failedAt reports whether err is an I/O failure on path. Open and read
// errors both surface as a *fs.PathError naming the file they hit, which
// is what tells a dead anchor from a dead comparison partner.
func failedAt(err error, path string) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && pathErr.Path == path
}
