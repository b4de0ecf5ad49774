package verify

import (
	"sort"

	"github.com/opencontainers/go-digest"

	"github.com/lndup/lndup/pkg/fileid"
	"github.com/lndup/lndup/pkg/logger"
	"github.com/lndup/lndup/pkg/scan"
	"github.com/lndup/lndup/pkg/workpool"
)

// Class is a group of files proven byte-identical within one set. Members
// are sorted by path and span at least two distinct inodes.
type Class struct {
	Size        int64
	Fingerprint digest.Digest
	Members     []scan.File
}

// Verifier partitions same-size buckets into equivalence classes. Digest
// and comparison work runs on the shared pool; everything else stays on
// the calling goroutine, so class membership only depends on path order,
// never on task completion order.
type Verifier struct {
	pool        *workpool.Pool
	trustDigest bool
	onProblem   func(path string, err error)
	hashFn      func(path string) (digest.Digest, error)
}

var log = logger.GetLogger("verify")

func New(pool *workpool.Pool, trustDigest bool, onProblem func(path string, err error)) *Verifier {
	return &Verifier{
		pool:        pool,
		trustDigest: trustDigest,
		onProblem:   onProblem,
		hashFn:      digestPath,
	}
}

// group is one inode's paths inside a bucket. Hashing one representative
// covers every path of the group, and paths sharing an inode can never
// produce an operation against each other.
type group struct {
	id    fileid.ID
	files []scan.File
}

func (g group) rep() string { return g.files[0].Path }

// VerifyBucket turns one size bucket into zero or more equivalence
// classes.
func (v *Verifier) VerifyBucket(size int64, files []scan.File) []Class {
	groups := groupByID(files)
	if len(groups) < 2 {
		// single inode, already fully linked
		return nil
	}

	log.Tracef("Verifying %d files (%d inodes) of size %d", len(files), len(groups), size)

	digests := v.digestGroups(groups)

	// partition inode groups by fingerprint, in representative order
	var order []digest.Digest
	byDigest := make(map[digest.Digest][]group)
	for i, g := range groups {
		d := digests[i]
		if d == "" {
			continue
		}
		if _, seen := byDigest[d]; !seen {
			order = append(order, d)
		}
		byDigest[d] = append(byDigest[d], g)
	}

	var classes []Class
	for _, d := range order {
		members := byDigest[d]
		if len(members) < 2 {
			continue
		}
		if v.trustDigest {
			classes = append(classes, makeClass(size, d, members))
			continue
		}
		classes = append(classes, v.confirm(size, d, members)...)
	}

	return classes
}

// digestGroups hashes each group's representative on the pool and waits
// for the bucket's join barrier. A read failure drops the group.
func (v *Verifier) digestGroups(groups []group) []digest.Digest {
	results := make([]digest.Digest, len(groups))
	errs := make([]error, len(groups))

	join := v.pool.Group()
	for i, g := range groups {
		join.Go(func() {
			results[i], errs[i] = v.hashFn(g.rep())
		})
	}
	join.Wait()

	for i, err := range errs {
		if err != nil {
			v.problem(groups[i].rep(), err)
			results[i] = ""
		}
	}

	return results
}

// confirm byte-compares a fingerprint partition against its first group
// so a hash collision can never merge non-identical content. Non-matching
// groups seed further rounds, so equal stragglers still pair up. A read
// failure drops only the side that failed: a dead comparison partner is
// reported and removed, while a dead anchor is reported once and the
// round redone under the next group.
func (v *Verifier) confirm(size int64, fingerprint digest.Digest, pending []group) []Class {
	var classes []Class

	for len(pending) > 1 {
		anchor := pending[0]
		rest := pending[1:]

		equal := make([]bool, len(rest))
		errs := make([]error, len(rest))

		join := v.pool.Group()
		for i, g := range rest {
			join.Go(func() {
				equal[i], errs[i] = samePayload(anchor.rep(), g.rep())
			})
		}
		join.Wait()

		if err := anchorFailure(anchor, errs); err != nil {
			// the anchor itself was unreadable, so this round proved
			// nothing about the others; drop the anchor alone and
			// re-anchor on whatever survives
			v.problem(anchor.rep(), err)

			var next []group
			for i, g := range rest {
				if errs[i] != nil && !failedAt(errs[i], anchor.rep()) {
					v.problem(g.rep(), errs[i])
					continue
				}
				next = append(next, g)
			}
			pending = next
			continue
		}

		matched := []group{anchor}
		var next []group
		for i, g := range rest {
			switch {
			case errs[i] != nil:
				v.problem(g.rep(), errs[i])
			case equal[i]:
				matched = append(matched, g)
			default:
				next = append(next, g)
			}
		}

		if len(matched) > 1 {
			classes = append(classes, makeClass(size, fingerprint, matched))
		}
		pending = next
	}

	return classes
}

// anchorFailure returns the first comparison error caused by the anchor's
// own file, nil when the anchor read cleanly.
func anchorFailure(anchor group, errs []error) error {
	for _, err := range errs {
		if err != nil && failedAt(err, anchor.rep()) {
			return err
		}
	}
	return nil
}

func makeClass(size int64, fingerprint digest.Digest, groups []group) Class {
	var members []scan.File
	for _, g := range groups {
		members = append(members, g.files...)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })

	return Class{Size: size, Fingerprint: fingerprint, Members: members}
}

func groupByID(files []scan.File) []group {
	byID := make(map[fileid.ID][]scan.File)
	for _, f := range files {
		byID[f.ID] = append(byID[f.ID], f)
	}

	groups := make([]group, 0, len(byID))
	for id, members := range byID {
		sort.Slice(members, func(i, j int) bool { return members[i].Path < members[j].Path })
		groups = append(groups, group{id: id, files: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].rep() < groups[j].rep() })

	return groups
}

func (v *Verifier) problem(path string, err error) {
	if v.onProblem != nil {
		v.onProblem(path, err)
	}
}
