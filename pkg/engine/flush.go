package engine

import (
	"os"
	"sync"

	"github.com/driftdb/driftdb/internal/batch"
	"github.com/driftdb/driftdb/internal/journal"
	"github.com/driftdb/driftdb/internal/model"
	"github.com/driftdb/driftdb/internal/obs"
)

// modelRuntime owns one model's background flush task: a single
// goroutine that drains the model's delta queue into batch events and
// commits them to the model's data journal.
//
// Grounded on the teacher's internal/repair worker-loop shape (one
// goroutine per unit of work, a stop channel, a done channel to join on
// shutdown), adapted from repair's one-shot scan to a long-lived
// dequeue-batch-commit cycle.
type modelRuntime struct {
	model    *model.Model
	maxBatch int
	log      *obs.Logger

	f *os.File

	wMu sync.Mutex
	w   *journal.Writer

	stop chan struct{}
	done chan struct{}
}

func newModelRuntime(m *model.Model, f *os.File, w *journal.Writer, maxBatch int, log *obs.Logger) *modelRuntime {
	if maxBatch <= 0 {
		maxBatch = 1
	}
	return &modelRuntime{
		model:    m,
		maxBatch: maxBatch,
		log:      log,
		f:        f,
		w:        w,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (rt *modelRuntime) start() {
	go rt.loop()
}

// loop blocks for the next delta, requeues it to measure how many more
// are already available without guessing, then commits a batch sized to
// at most maxBatch of them.
//
// Measuring queue.Len() after the requeue is safe: the queue is
// single-consumer, so between this measurement and batch.NewEvent's
// internal drain nothing can shrink the count, only grow it — expected
// is always a valid lower bound on what's available, so the drain loop
// never blocks waiting for a delta that will never arrive.
func (rt *modelRuntime) loop() {
	defer close(rt.done)
	queue := rt.model.Queue()
	for {
		d, ok := queue.DequeueOrStop(rt.stop)
		if !ok {
			return
		}
		queue.Requeue(d)

		expected := queue.Len()
		if expected > rt.maxBatch {
			expected = rt.maxBatch
		}

		ev := batch.NewEvent(rt.model, uint64(expected))
		if err := rt.commit(ev); err != nil {
			rt.log.Error("batch commit failed", "error", err.Error())
			if hbErr := rt.heartbeat(); hbErr != nil {
				rt.log.Error("lwt heartbeat failed after commit failure", "error", hbErr.Error())
			}
			continue
		}
		rt.log.Debug("batch committed", "rows", ev.Actual)
	}
}

func (rt *modelRuntime) commit(ev *batch.Event) error {
	rt.wMu.Lock()
	defer rt.wMu.Unlock()
	return rt.w.CommitEvent(ev)
}

func (rt *modelRuntime) heartbeat() error {
	rt.wMu.Lock()
	defer rt.wMu.Unlock()
	return rt.w.LWTHeartbeat()
}

// close stops the flush loop, waits for it to drain its current
// iteration, then closes the journal driver and underlying file.
func (rt *modelRuntime) close() error {
	close(rt.stop)
	<-rt.done

	rt.wMu.Lock()
	defer rt.wMu.Unlock()
	var firstErr error
	if err := rt.w.CloseDriver(); err != nil {
		firstErr = err
	}
	if err := rt.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
