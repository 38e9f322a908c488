package core

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// JobTask describes one unit of work. The callbacks run on the worker
// goroutine that ran the job.
type JobTask struct {
	Name       string
	OnStart    func() error
	OnComplete func()
	OnFailure  func(err error)
	// OnCompletionCallback runs after OnComplete or OnFailure.
	OnCompletionCallback func()
}

// JobSystem runs submitted jobs on a fixed set of worker goroutines.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	workers    sync.WaitGroup
	pending    sync.WaitGroup

	mutex  sync.Mutex
	closed bool
}

var ErrNoWorkers = errors.Mark(errors.New("attempting to create worker pool with less than 1 worker"), ErrInvalidArgument)
var ErrNegativeChannelSize = errors.Mark(errors.New("attempting to create worker pool with a negative channel size"), ErrInvalidArgument)

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.workers.Add(1)
		go func() {
			defer js.workers.Done()
			for job := range js.jobQueue {
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer js.pending.Done()
	if err := job.OnStart(); err != nil {
		LogDebug("job %s failed: %v", job.Name, err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
	} else if job.OnComplete != nil {
		job.OnComplete()
	}
	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

// Submit queues jt, blocking while the queue is full. Submitting after
// Shutdown returns an error.
func (js *JobSystem) Submit(jt JobTask) error {
	if jt.OnStart == nil {
		return errors.Wrapf(ErrInvalidArgument, "job %q has no OnStart", jt.Name)
	}
	js.mutex.Lock()
	defer js.mutex.Unlock()
	if js.closed {
		return errors.Wrapf(ErrInvalidArgument, "job system is shut down, dropping %q", jt.Name)
	}
	js.pending.Add(1)
	js.jobQueue <- jt
	return nil
}

// Wait blocks until every submitted job has finished.
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

// Shutdown drains the queue and stops the workers.
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.closed {
		js.mutex.Unlock()
		return nil
	}
	js.closed = true
	close(js.jobQueue)
	js.mutex.Unlock()
	js.workers.Wait()
	return nil
}
