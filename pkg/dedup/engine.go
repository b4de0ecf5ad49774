package dedup

import (
	"sort"

	"github.com/dlclark/regexp2"
	"github.com/expr-lang/expr/vm"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/lndup/lndup/pkg/config"
	"github.com/lndup/lndup/pkg/linker"
	"github.com/lndup/lndup/pkg/logger"
	"github.com/lndup/lndup/pkg/output"
	"github.com/lndup/lndup/pkg/scan"
	"github.com/lndup/lndup/pkg/targets"
	"github.com/lndup/lndup/pkg/verify"
	"github.com/lndup/lndup/pkg/workpool"
)

// Engine drives the enumerate, verify and link phases over resolved
// target sets. All renderer calls happen on the caller's goroutine, so a
// run produces the same output regardless of the thread count.
type Engine struct {
	cfg      *config.Settings
	excludes []*regexp2.Regexp
	filter   *vm.Program
	out      output.Renderer
	log      *logrus.Entry
	execute  func(linker.Operation) error

	stats output.Stats
}

// Plan is the full set of hardlink operations a run would perform,
// grouped by target set. Rendering and executing a plan walks the same
// pairs in the same order, which is what makes a dry run a faithful
// preview.
type Plan struct {
	Sets []SetPlan
}

// SetPlan is the slice of a Plan belonging to one target set.
type SetPlan struct {
	Set targets.Set
	Ops []linker.Operation
}

func New(cfg *config.Settings, excludes []*regexp2.Regexp, filter *vm.Program, out output.Renderer) *Engine {
	return &Engine{
		cfg:      cfg,
		excludes: excludes,
		filter:   filter,
		out:      out,
		log:      logger.GetLogger("dedup"),
		execute:  linker.Execute,
	}
}

// Plan enumerates every set, verifies the candidate buckets and returns
// the operations a run would perform. No file content is modified.
func (e *Engine) Plan(sets []targets.Set) (*Plan, error) {
	pool := workpool.New(e.cfg.Threads)
	pool.Start()
	defer pool.Stop()

	plan := &Plan{}
	for _, set := range sets {
		ops, err := e.planSet(pool, set)
		if err != nil {
			return nil, err
		}
		plan.Sets = append(plan.Sets, SetPlan{Set: set, Ops: ops})
	}
	return plan, nil
}

// bucketResult collects one size bucket's outcome so problems can be
// reported in bucket order after all coordinators finish.
type bucketResult struct {
	classes  []verify.Class
	problems []output.Problem
}

func (e *Engine) planSet(pool *workpool.Pool, set targets.Set) ([]linker.Operation, error) {
	walker := &scan.Walker{
		Excludes: e.excludes,
		Filter:   e.filter,
		OnProblem: func(path string, err error) {
			e.problem(output.Problem{Stage: output.StageEnumerate, Path: path, Err: err})
		},
	}

	var files []scan.File
	walker.Walk(set, func(f scan.File) {
		files = append(files, f)
	})
	e.stats.Files += len(files)

	buckets := scan.Buckets(files, e.cfg.MinSize)
	e.stats.Buckets += len(buckets)

	e.log.Debugf("Set %d: considering %d files in %d size groups", set.Index, len(files), len(buckets))

	// largest buckets first, reclaimable space surfaces early
	sizes := make([]int64, 0, len(buckets))
	for size := range buckets {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] > sizes[j] })

	results := make([]bucketResult, len(sizes))
	var g errgroup.Group
	for i, size := range sizes {
		g.Go(func() error {
			r := &results[i]
			verifier := verify.New(pool, e.cfg.TrustDigest, func(path string, err error) {
				r.problems = append(r.problems, output.Problem{Stage: output.StageRead, Path: path, Err: err})
			})
			r.classes = verifier.VerifyBucket(size, buckets[size])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var classes []verify.Class
	for i := range results {
		for _, p := range results[i].problems {
			e.problem(p)
		}
		classes = append(classes, results[i].classes...)
	}
	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Members[0].Path < classes[j].Members[0].Path
	})
	e.stats.Classes += len(classes)

	var ops []linker.Operation
	for _, class := range classes {
		classOps := linker.PlanClass(class)
		for _, op := range classOps {
			e.stats.Bytes += uint64(op.Size)
		}
		e.stats.Operations += len(classOps)
		ops = append(ops, classOps...)
	}
	return ops, nil
}

// Render prints every planned operation without touching the filesystem.
func (e *Engine) Render(plan *Plan) {
	for _, sp := range plan.Sets {
		for _, op := range sp.Ops {
			e.out.Operation(op, false)
		}
	}
}

// Execute performs the planned links. A cross-device link error means the
// plan no longer matches the filesystem, so the rest of that set is
// abandoned; any other failure skips the single operation.
func (e *Engine) Execute(plan *Plan) {
	e.stats.Mutated = true

	for _, sp := range plan.Sets {
		for _, op := range sp.Ops {
			if err := e.execute(op); err != nil {
				e.problem(output.Problem{Stage: output.StageLink, Path: op.Replace, Err: err})
				if errors.Is(err, linker.ErrCrossDevice) {
					e.log.WithError(err).Errorf("Set %d no longer matches its device, abandoning remaining operations", sp.Set.Index)
					break
				}
				continue
			}
			e.out.Operation(op, true)
			e.stats.Linked++
			e.stats.LinkedBytes += uint64(op.Size)
		}
	}
}

// Summarize renders the end-of-run accounting.
func (e *Engine) Summarize() {
	e.out.Summary(e.stats)
}

// Stats returns the accumulated run accounting.
func (e *Engine) Stats() output.Stats {
	return e.stats
}

func (e *Engine) problem(p output.Problem) {
	e.stats.Problems++
	e.out.Problem(p)
}
