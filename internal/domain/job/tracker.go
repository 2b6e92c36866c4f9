package job

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/albinvar/bixss-ca-frontend-sub000/pkg/analysisapi"
)

// Tracker keeps the in-flight job list and shares one poll loop per job
// between all of its watchers.
type Tracker struct {
	fetcher    StatusFetcher
	opts       PollOptions
	onTerminal func(analysisapi.Job)

	mu      sync.Mutex
	jobs    map[string]analysisapi.Job
	watches map[string]*watch
	nextID  uint64
}

type watch struct {
	// fan is held for reading while observations are delivered and for
	// writing while a listener leaves, so a watcher gets no callback after
	// Watch has returned. Acquired before Tracker.mu.
	fan sync.RWMutex

	listeners map[uint64]ProgressFunc
	cancel    context.CancelFunc
	done      chan struct{}

	// set before done is closed
	job analysisapi.Job
	err error
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// OnTerminal registers fn to run once per loop that ends on completed or failed
func OnTerminal(fn func(analysisapi.Job)) TrackerOption {
	return func(t *Tracker) {
		t.onTerminal = fn
	}
}

// NewTracker creates a Tracker polling through fetcher
func NewTracker(fetcher StatusFetcher, opts PollOptions, options ...TrackerOption) *Tracker {
	t := &Tracker{
		fetcher: fetcher,
		opts:    opts.withDefaults(),
		jobs:    make(map[string]analysisapi.Job),
		watches: make(map[string]*watch),
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

// Watch blocks until jobID is terminal or ctx is done. The first watcher
// of a job starts its poll loop; later ones join it and receive every
// observation made after they joined. The loop stops early only once
// every watcher has left.
func (t *Tracker) Watch(ctx context.Context, jobID string, onProgress ProgressFunc) (analysisapi.Job, error) {
	if jobID == "" {
		return analysisapi.Job{}, analysisapi.ErrJobIDRequired
	}
	if onProgress == nil {
		onProgress = func(analysisapi.Job) {}
	}

	t.mu.Lock()
	if snap, ok := t.jobs[jobID]; ok && snap.Status.Terminal() {
		t.mu.Unlock()
		onProgress(snap)
		return snap, terminalErr(snap)
	}

	w, ok := t.watches[jobID]
	if !ok {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		w = &watch{
			listeners: make(map[uint64]ProgressFunc),
			cancel:    cancel,
			done:      make(chan struct{}),
		}
		t.watches[jobID] = w
		go t.run(loopCtx, jobID, w)
	}
	t.nextID++
	id := t.nextID
	w.listeners[id] = onProgress
	t.mu.Unlock()

	defer t.leave(jobID, w, id)

	select {
	case <-w.done:
		return w.job, w.err
	case <-ctx.Done():
		snap, _ := t.Snapshot(jobID)
		return snap, context.Cause(ctx)
	}
}

// Remember stores job as the current snapshot unless a terminal one is
// already known.
func (t *Tracker) Remember(job analysisapi.Job) {
	if job.ID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.jobs[job.ID]; ok && prev.Status.Terminal() {
		return
	}
	t.jobs[job.ID] = job
}

// Snapshot returns the last observed state of jobID
func (t *Tracker) Snapshot(jobID string) (analysisapi.Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	return job, ok
}

// List returns every known job, oldest first
func (t *Tracker) List() []analysisapi.Job {
	t.mu.Lock()
	out := make([]analysisapi.Job, 0, len(t.jobs))
	for _, job := range t.jobs {
		out = append(out, job)
	}
	t.mu.Unlock()

	slices.SortFunc(out, func(a, b analysisapi.Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Forget drops the snapshot of a job nobody is watching
func (t *Tracker) Forget(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, watching := t.watches[jobID]; watching {
		return false
	}
	_, ok := t.jobs[jobID]
	delete(t.jobs, jobID)
	return ok
}

// Watching returns the number of jobs with a running poll loop
func (t *Tracker) Watching() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.watches)
}

func (t *Tracker) run(ctx context.Context, jobID string, w *watch) {
	defer w.cancel()

	log := t.opts.Logger.Named("tracker")
	log.Info("poll loop started", "job_id", jobID)

	job, err := PollUntilTerminal(ctx, t.fetcher, jobID, func(job analysisapi.Job) {
		t.observe(jobID, w, job)
	}, t.opts)

	t.mu.Lock()
	w.job, w.err = job, err
	if t.watches[jobID] == w {
		delete(t.watches, jobID)
	}
	t.mu.Unlock()
	close(w.done)

	if job.Status.Terminal() && t.onTerminal != nil {
		t.onTerminal(job)
	}
	log.Info("poll loop finished", "job_id", jobID, "status", job.Status, "error", err)
}

// observe replaces the snapshot and fans it out to the current listeners
func (t *Tracker) observe(jobID string, w *watch, job analysisapi.Job) {
	w.fan.RLock()
	defer w.fan.RUnlock()

	t.mu.Lock()
	if t.watches[jobID] != w {
		t.mu.Unlock()
		return
	}
	t.jobs[jobID] = job
	listeners := make([]ProgressFunc, 0, len(w.listeners))
	for _, fn := range w.listeners {
		listeners = append(listeners, fn)
	}
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(job)
	}
}

func (t *Tracker) leave(jobID string, w *watch, id uint64) {
	w.fan.Lock()
	defer w.fan.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	delete(w.listeners, id)
	if len(w.listeners) > 0 {
		return
	}

	select {
	case <-w.done:
	default:
		w.cancel()
		if t.watches[jobID] == w {
			delete(t.watches, jobID)
		}
	}
}

func terminalErr(job analysisapi.Job) error {
	if job.Status == analysisapi.StatusFailed {
		return &JobFailedError{JobID: job.ID, Reason: job.Error}
	}
	return nil
}
