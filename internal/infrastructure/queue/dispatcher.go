package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/core/ports"
	"github.com/pharmaai/backoffice-auth/internal/metrics"
)

const (
	defaultWorkers = 2
	channelBuffer  = 64
	touchTimeout   = 5 * time.Second
)

// AccessRecorder is the slice of the user directory the dispatcher writes to.
type AccessRecorder interface {
	TouchLastAccess(ctx context.Context, subjectID string, at time.Time) error
}

type touchJob struct {
	subjectID string
	due       time.Time
}

// Dispatcher delays and applies "last access" updates on a fixed set of
// workers, sharded by subject so that updates for one user stay ordered.
// Updates are best-effort: a full queue drops the job and failures are only
// logged.
type Dispatcher struct {
	workers []chan touchJob
	store   AccessRecorder
	delay   time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

var _ ports.AccessToucher = (*Dispatcher)(nil)

// NewDispatcher creates a Dispatcher with numWorkers sharded workers. If
// numWorkers <= 0, defaultWorkers is used; a negative delay means none.
func NewDispatcher(numWorkers int, delay time.Duration, store AccessRecorder, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	if delay < 0 {
		delay = 0
	}
	d := &Dispatcher{
		workers: make([]chan touchJob, numWorkers),
		store:   store,
		delay:   delay,
		now:     time.Now,
		log:     log.With().Str("component", "touch_dispatcher").Logger(),
	}
	for i := range d.workers {
		d.workers[i] = make(chan touchJob, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// ScheduleTouch queues a last-access update for subjectID. It never blocks.
func (d *Dispatcher) ScheduleTouch(subjectID string) {
	if subjectID == "" {
		return
	}
	idx := d.shardIndex(subjectID)
	select {
	case d.workers[idx] <- touchJob{subjectID: subjectID, due: d.now().Add(d.delay)}:
		metrics.TouchQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.log.Warn().Str("subject_id", subjectID).Int("worker_id", idx).Msg("touch queue full, dropping update")
	}
}

// shardIndex maps a subject deterministically to a worker index.
func (d *Dispatcher) shardIndex(subjectID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subjectID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan touchJob) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-ch:
			if !ok {
				return
			}
			metrics.TouchQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			if !d.wait(ctx, job.due) {
				return
			}
			d.touch(ctx, id, job.subjectID)
		}
	}
}

// wait sleeps until due. It reports false when ctx ends first.
func (d *Dispatcher) wait(ctx context.Context, due time.Time) bool {
	wait := due.Sub(d.now())
	if wait <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Dispatcher) touch(ctx context.Context, id int, subjectID string) {
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	if err := d.store.TouchLastAccess(ctx, subjectID, d.now().UTC()); err != nil {
		metrics.LastAccessTouchesTotal.WithLabelValues("error").Inc()
		d.log.Warn().Err(err).
			Str("subject_id", subjectID).
			Int("worker_id", id).
			Msg("last access update failed")
		return
	}
	metrics.LastAccessTouchesTotal.WithLabelValues("ok").Inc()
}
