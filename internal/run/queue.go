package run

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/video-translate/backend/internal/logger"
	"github.com/video-translate/backend/internal/pipeline"
)

// Handler executes the pipeline for one run and returns its assembled result.
type Handler func(ctx context.Context, r *Run, onProgress pipeline.Progress) (*pipeline.Result, error)

// Cleanup runs after a run reaches a terminal state, e.g. to remove the
// uploaded video.
type Cleanup func(r *Run)

// Queue dispatches pending runs to the pipeline one at a time and supports
// per-run cancellation. Runs interrupted by a restart are re-queued.
type Queue struct {
	store   *Store
	handler Handler
	cleanup Cleanup

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	pending chan string
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logrus.Entry
}

func NewQueue(store *Store, handler Handler, cleanup Cleanup) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		store:   store,
		handler: handler,
		cleanup: cleanup,
		cancels: make(map[string]context.CancelFunc),
		pending: make(chan string, 100),
		ctx:     ctx,
		cancel:  cancel,
		log:     logger.WithComponent("queue"),
	}

	// Re-queue interrupted runs before the worker starts so the blanket
	// running -> pending reset cannot claw back a run this process owns.
	q.resume()
	go q.worker()

	return q
}

// Enqueue persists a new run and schedules it.
func (q *Queue) Enqueue(r *Run) error {
	r.Status = StatusPending
	r.CreatedAt = time.Now()
	if err := q.store.Create(r); err != nil {
		return err
	}

	select {
	case q.pending <- r.ID:
	default:
		q.log.WithField("run", r.ID).Warn("queue full, run will be picked up on restart")
	}
	return nil
}

// CancelRun cancels a pending or running run. The cancelled state is
// persisted before the context is cancelled so cleanup sees a terminal run.
func (q *Queue) CancelRun(id string) error {
	if err := q.store.Cancel(id, time.Now()); err != nil {
		return err
	}

	q.mu.Lock()
	if cancelFn, ok := q.cancels[id]; ok {
		cancelFn()
		delete(q.cancels, id)
	}
	q.mu.Unlock()
	return nil
}

// Stop shuts the queue down; in-flight runs are cancelled.
func (q *Queue) Stop() {
	q.cancel()
}

func (q *Queue) worker() {
	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.pending:
			q.process(id)
		}
	}
}

func (q *Queue) process(id string) {
	r, err := q.store.Get(id)
	if err != nil {
		q.log.WithField("run", id).WithError(err).Error("failed to load run")
		return
	}
	if r.Status != StatusPending {
		// Cancelled before the worker picked it up; the upload is no longer
		// needed.
		q.finish(r)
		return
	}

	now := time.Now()
	if err := q.store.MarkRunning(id, now); err != nil {
		q.log.WithField("run", id).WithError(err).Error("failed to mark run running")
		return
	}

	ctx, cancelFn := context.WithCancel(q.ctx)
	q.mu.Lock()
	q.cancels[id] = cancelFn
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.cancels, id)
		q.mu.Unlock()
		cancelFn()
		q.finish(r)
	}()

	// lastStage tracks where a failure originates so Failed(stage) can be
	// surfaced to the presentation layer.
	var mu sync.Mutex
	lastStage := string(pipeline.StageExtracting)
	onProgress := func(stage pipeline.Stage, fraction float64) {
		mu.Lock()
		lastStage = string(stage)
		mu.Unlock()
		q.store.UpdateProgress(id, string(stage), fraction)
	}

	q.log.WithFields(logrus.Fields{"run": id, "video": r.VideoName, "languages": r.Languages}).Info("run started")

	result, err := q.handler(ctx, r, onProgress)

	if ctx.Err() != nil {
		// Either the user cancelled (Cancel recorded the state) or the queue
		// is shutting down (the run stays running and resumes after restart).
		q.log.WithField("run", id).Info("run interrupted")
		return
	}

	if err != nil {
		mu.Lock()
		stage := lastStage
		mu.Unlock()
		q.store.Fail(id, stage, err.Error(), time.Now())
		q.log.WithFields(logrus.Fields{"run": id, "stage": stage}).WithError(err).Error("run failed")
		return
	}

	if err := q.store.Complete(id, result, time.Now()); err != nil {
		q.log.WithField("run", id).WithError(err).Error("failed to store run result")
		return
	}
	q.log.WithFields(logrus.Fields{
		"run":      id,
		"duration": time.Since(now).Round(time.Millisecond).String(),
	}).Info("run completed")
}

// finish runs cleanup once a run has reached a terminal state. Runs left
// non-terminal by a shutdown are re-queued after restart and still need
// their uploaded video.
func (q *Queue) finish(r *Run) {
	if q.cleanup == nil {
		return
	}
	cur, err := q.store.Get(r.ID)
	if err != nil {
		q.log.WithField("run", r.ID).WithError(err).Error("failed to load run for cleanup")
		return
	}
	if !cur.Status.Terminal() {
		return
	}
	q.cleanup(r)
}

// resume re-queues runs interrupted by a previous shutdown.
func (q *Queue) resume() {
	ids, err := q.store.ResetInterrupted()
	if err != nil {
		q.log.WithError(err).Error("failed to resume runs")
		return
	}

	count := 0
	for _, id := range ids {
		select {
		case q.pending <- id:
			count++
		default:
		}
	}
	if count > 0 {
		q.log.WithField("count", count).Info("resumed pending runs")
	}
}
