package workpool

import "sync"

// Pool is a fixed-size set of worker goroutines pulling tasks from one
// shared queue. Tasks never block on each other; the only synchronization
// callers build on top is the Group join barrier.
type Pool struct {
	tasks   chan func()
	workers int
	wg      sync.WaitGroup
}

// New sizes a pool; counts below 1 clamp to 1.
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		tasks:   make(chan func()),
		workers: workers,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for task := range p.tasks {
				task()
			}
		}()
	}
}

// Stop waits for queued tasks to drain and the workers to exit. Submit
// must not be called after Stop.
func (p *Pool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}

// Submit queues one task, blocking until a worker accepts it. Workers
// never submit, so the blocking send is pure backpressure and cannot
// deadlock.
func (p *Pool) Submit(task func()) {
	p.tasks <- task
}

// Size reports the worker count.
func (p *Pool) Size() int { return p.workers }

// Group tracks a batch of submitted tasks so a caller can wait for all of
// them.
type Group struct {
	pool *Pool
	wg   sync.WaitGroup
}

// Group returns a new empty join handle on the pool.
func (p *Pool) Group() *Group {
	return &Group{pool: p}
}

// Go submits task and tracks it in the group.
func (g *Group) Go(task func()) {
	g.wg.Add(1)
	g.pool.Submit(func() {
		defer g.wg.Done()
		task()
	})
}

// Wait blocks until every task submitted through the group has finished.
func (g *Group) Wait() {
	g.wg.Wait()
}
