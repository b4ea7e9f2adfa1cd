package mesher

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/hexsphere/octree"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultNumWorkers  = 16
	DefaultMaxInFlight = 256
)

// Task is a chunk build submitted to a pool.
type Task struct {
	req      Request
	done     chan struct{}
	result   *Result
	canceled atomic.Bool
}

func newTask(req Request) *Task {
	return &Task{
		req:  req,
		done: make(chan struct{}),
	}
}

func (t *Task) Index() octree.Index {
	return t.req.Index
}

// Done reports whether the task is finished. It never blocks.
func (t *Task) Done() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Wait returns a channel closed when the task is finished.
func (t *Task) Wait() <-chan struct{} {
	return t.done
}

// Result returns the build result. It returns false while the task is not
// done, when the task was canceled, when the region was empty or when the
// build crashed.
func (t *Task) Result() (*Result, bool) {
	if !t.Done() || t.result == nil {
		return nil, false
	}
	return t.result, true
}

// Cancel marks the task as canceled. A task that did not start yet is
// skipped by the workers. A running task completes but its result is meant to
// be discarded.
func (t *Task) Cancel() {
	t.canceled.Store(true)
}

func (t *Task) Canceled() bool {
	return t.canceled.Load()
}

// Pool runs chunk builds on a fixed set of worker goroutines.
type Pool struct {
	// The number of workers. Defaults to DefaultNumWorkers.
	NumWorkers int

	// The maximum number of queued or running builds. Defaults to
	// DefaultMaxInFlight.
	MaxInFlight int

	// The function that builds chunks. Defaults to Build.
	BuildFunc func(Request) (*Result, bool)

	initOnce  sync.Once
	sem       *semaphore.Weighted
	jobs      chan *Task
	closed    chan struct{}
	closeOnce sync.Once

	mutex   sync.Mutex
	workers []*worker
}

type worker struct {
	id     int
	exited chan struct{}
}

func (p *Pool) init() {
	if p.NumWorkers <= 0 {
		p.NumWorkers = DefaultNumWorkers
	}
	if p.MaxInFlight <= 0 {
		p.MaxInFlight = DefaultMaxInFlight
	}
	if p.BuildFunc == nil {
		p.BuildFunc = Build
	}

	p.sem = semaphore.NewWeighted(int64(p.MaxInFlight))
	p.jobs = make(chan *Task, p.MaxInFlight)
	p.closed = make(chan struct{})

	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.workers = make([]*worker, p.NumWorkers)
	for i := range p.workers {
		p.workers[i] = p.spawn(i)
	}
}

// Submit queues a build. It returns false without blocking when too many
// builds are in flight or when the pool is closed.
func (p *Pool) Submit(req Request) (*Task, bool) {
	p.initOnce.Do(p.init)

	select {
	case <-p.closed:
		return nil, false
	default:
	}

	if !p.sem.TryAcquire(1) {
		instrumentThrottle()
		return nil, false
	}

	t := newTask(req)
	p.jobs <- t
	instrumentSubmit()
	return t, true
}

// CheckWorkers replaces the workers that exited after a crash and returns how
// many were respawned.
func (p *Pool) CheckWorkers() int {
	p.initOnce.Do(p.init)

	select {
	case <-p.closed:
		return 0
	default:
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	respawned := 0
	for i, w := range p.workers {
		select {
		case <-w.exited:
			logs.WithTag("worker", w.id).Warn("respawning chunk worker")
			p.workers[i] = p.spawn(w.id)
			respawned++

		default:
		}
	}

	instrumentRespawns(respawned)
	return respawned
}

// AliveWorkers returns the number of workers that did not exit.
func (p *Pool) AliveWorkers() int {
	p.initOnce.Do(p.init)
	p.mutex.Lock()
	defer p.mutex.Unlock()

	alive := 0
	for _, w := range p.workers {
		select {
		case <-w.exited:
		default:
			alive++
		}
	}
	return alive
}

// Close stops the workers and waits for them to exit. Queued tasks are never
// completed.
func (p *Pool) Close() {
	p.initOnce.Do(p.init)
	p.closeOnce.Do(func() {
		close(p.closed)
	})

	p.mutex.Lock()
	workers := make([]*worker, len(p.workers))
	copy(workers, p.workers)
	p.mutex.Unlock()

	for _, w := range workers {
		<-w.exited
	}
}

func (p *Pool) spawn(id int) *worker {
	w := &worker{
		id:     id,
		exited: make(chan struct{}),
	}
	go p.work(w)
	return w
}

func (p *Pool) work(w *worker) {
	defer close(w.exited)

	for {
		select {
		case <-p.closed:
			return

		case t := <-p.jobs:
			if !p.run(t) {
				return
			}
		}
	}
}

// run executes a task and returns false when the build panicked.
func (p *Pool) run(t *Task) (ok bool) {
	start := time.Now()

	defer p.sem.Release(1)
	defer instrumentRelease()
	defer close(t.done)
	defer func() {
		if r := recover(); r != nil {
			logs.WithTag("index", t.req.Index).
				WithTag("panic", r).
				Error(errors.New("chunk build crashed"))
			instrumentBuild(outcomePanic, time.Since(start))
			ok = false
		}
	}()

	if t.Canceled() {
		instrumentBuild(outcomeCanceled, 0)
		return true
	}

	res, found := p.BuildFunc(t.req)
	if !found {
		instrumentBuild(outcomeEmpty, time.Since(start))
		return true
	}

	t.result = res
	instrumentBuild(outcomeBuilt, time.Since(start))

	logs.WithTag("index", t.req.Index).
		WithTag("cells", len(res.Cells)).
		WithTag("simplified", res.Simplified).
		WithTag("duration", time.Since(start)).
		Debug("chunk built")
	return true
}
