package utils

import (
	"sync"
	"sync/atomic"
)

// Job represents a task to be executed by a worker.
type Job struct {
	Task func()
}

// WorkerPool manages a pool of workers, each draining its own bounded queue.
// Jobs submitted with the same key run on the same worker, in submission
// order.
type WorkerPool struct {
	workers   int
	queues    []chan Job
	waitGroup sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool of workers with room for about queueSize
// pending jobs, split evenly between the workers. A non-positive queueSize
// queues one job per worker.
func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	perWorker := (queueSize + workers - 1) / workers
	if perWorker < 1 {
		perWorker = 1
	}
	pool := &WorkerPool{
		workers: workers,
		queues:  make([]chan Job, workers),
	}

	pool.waitGroup.Add(workers)
	for i := range pool.queues {
		pool.queues[i] = make(chan Job, perWorker)
		go pool.worker(pool.queues[i])
	}

	return pool
}

// worker processes jobs from its queue.
func (wp *WorkerPool) worker(queue <-chan Job) {
	defer wp.waitGroup.Done()
	for job := range queue {
		job.Task()
	}
}

// TrySubmitKeyed queues task, without blocking, behind every earlier job
// submitted with the same key. It returns false when the key's queue is full
// or the pool has been shut down.
func (wp *WorkerPool) TrySubmitKeyed(key int, task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return false
	}
	select {
	case wp.queues[uint64(key)%uint64(wp.workers)] <- Job{Task: task}:
		return true
	default:
		return false
	}
}

// TrySubmitBarrier runs task once every job submitted before it has
// finished; jobs submitted after it start only once task is done. It
// returns false, queuing nothing, when any queue is full or the pool has
// been shut down.
func (wp *WorkerPool) TrySubmitBarrier(task func()) bool {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return false
	}
	// Workers only drain, so free slots seen here stay free.
	for _, q := range wp.queues {
		if len(q) == cap(q) {
			return false
		}
	}

	var remaining atomic.Int32
	remaining.Store(int32(wp.workers))
	done := make(chan struct{})
	arrive := func() {
		if remaining.Add(-1) == 0 {
			task()
			close(done)
			return
		}
		<-done
	}
	for _, q := range wp.queues {
		q <- Job{Task: arrive}
	}
	return true
}

// Shutdown stops accepting jobs and waits for the queued ones to finish.
func (wp *WorkerPool) Shutdown() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	for _, q := range wp.queues {
		close(q)
	}
	wp.mu.Unlock()

	wp.waitGroup.Wait()
}
