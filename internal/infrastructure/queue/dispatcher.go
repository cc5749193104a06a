package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/servicehub/marketplace-client/internal/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// Job is one unit of background work. ctx is the dispatcher's context.
type Job func(ctx context.Context)

type task struct {
	key string
	run Job
}

// Dispatcher routes background jobs to a fixed set of workers using
// consistent hashing on the job key, so jobs for one key never run
// concurrently and run in submission order.
type Dispatcher struct {
	workers []chan task
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	pending sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan task, numWorkers),
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan task, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// jobs still queued at that point are dropped.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Submit queues job on the worker responsible for key. It never blocks:
// false is returned when that worker's queue is full or the dispatcher has
// stopped.
func (d *Dispatcher) Submit(key string, job func(ctx context.Context)) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return false
	}

	idx := d.shardIndex(key)
	d.pending.Add(1)
	select {
	case d.workers[idx] <- task{key: key, run: job}:
		metrics.RefreshQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
		return true
	default:
		d.pending.Done()
		d.log.Warn().Str("key", key).Int("worker_id", idx).Msg("refresh queue full, job dropped")
		return false
	}
}

// Wait blocks until every accepted job has run or been dropped.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}

// shardIndex maps a key deterministically to a worker index.
func (d *Dispatcher) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan task) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			d.stop()
			d.drain(ch)
			metrics.RefreshQueueDepth.WithLabelValues(label).Set(0)
			return
		case t := <-ch:
			metrics.RefreshQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.run(ctx, id, t)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, id int, t task) {
	defer d.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Interface("panic", r).Str("key", t.key).Int("worker_id", id).Msg("background job panicked")
		}
	}()
	t.run(ctx)
}

// stop rejects further submissions. Holding the write lock guarantees no
// Submit is midway through a send once it returns.
func (d *Dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
}

func (d *Dispatcher) drain(ch <-chan task) {
	for {
		select {
		case <-ch:
			d.pending.Done()
		default:
			return
		}
	}
}
