// ABOUTME: Timestamp-based playback scheduler
// ABOUTME: Buffers decoded audio and releases it on a min-heap ordered by scheduled local play time
package receiver

import (
	"container/heap"
	"context"
	"log"
	"time"

	"github.com/roomcast/roomcast-go/pkg/audio"
)

// onTimeWindow is how far from its scheduled time a buffer may play
// and still be considered on time, per the ±50ms scheduling window.
const onTimeWindow = 50 * time.Millisecond

// tickInterval is the scheduler's polling period.
const tickInterval = 10 * time.Millisecond

// startupBufferTarget is the number of buffers queued before the
// scheduler starts releasing audio, smoothing over early jitter in
// the clock-sync estimate.
const startupBufferTarget = 25

// SchedulerStats tracks scheduler throughput.
type SchedulerStats struct {
	Received int64
	Played   int64
	Dropped  int64
}

// Scheduler orders decoded buffers by scheduled local play time and
// releases them on Output as their window arrives.
type Scheduler struct {
	queue  *bufferQueue
	output chan audio.Buffer

	ctx    context.Context
	cancel context.CancelFunc

	buffering    bool
	bufferTarget int

	stats SchedulerStats
}

// NewScheduler creates a playback scheduler with the default startup
// buffering target.
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queue:        newBufferQueue(),
		output:       make(chan audio.Buffer, 10),
		ctx:          ctx,
		cancel:       cancel,
		buffering:    true,
		bufferTarget: startupBufferTarget,
	}
}

// Schedule enqueues a buffer whose PlayAt has already been computed
// by the caller (via clocksync.Sync.ServerToLocal).
func (s *Scheduler) Schedule(buf audio.Buffer) {
	s.stats.Received++
	heap.Push(s.queue, buf)
}

// Run drives the scheduler's tick loop until the context passed to
// NewScheduler is canceled via Stop.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.processQueue()
		}
	}
}

func (s *Scheduler) processQueue() {
	if s.buffering {
		if s.queue.Len() >= s.bufferTarget {
			log.Printf("scheduler: startup buffering complete, %d buffers ready", s.queue.Len())
			s.buffering = false
		} else {
			return
		}
	}

	now := time.Now()
	for s.queue.Len() > 0 {
		buf := s.queue.peek()
		delay := buf.PlayAt.Sub(now)

		switch {
		case delay > onTimeWindow:
			return
		case delay < -onTimeWindow:
			heap.Pop(s.queue)
			s.stats.Dropped++
			log.Printf("scheduler: dropped buffer %v late", -delay)
		default:
			heap.Pop(s.queue)
			select {
			case s.output <- buf:
				s.stats.Played++
			case <-s.ctx.Done():
				return
			}
		}
	}
}

// Output is the channel of buffers ready to hand to the local audio
// engine.
func (s *Scheduler) Output() <-chan audio.Buffer {
	return s.output
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() SchedulerStats {
	return s.stats
}

// Stop cancels the scheduler's run loop.
func (s *Scheduler) Stop() {
	s.cancel()
}

// bufferQueue is a min-heap of audio.Buffer ordered by PlayAt.
type bufferQueue struct {
	items []audio.Buffer
}

func newBufferQueue() *bufferQueue {
	q := &bufferQueue{}
	heap.Init(q)
	return q
}

func (q *bufferQueue) Len() int { return len(q.items) }

func (q *bufferQueue) Less(i, j int) bool {
	return q.items[i].PlayAt.Before(q.items[j].PlayAt)
}

func (q *bufferQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *bufferQueue) Push(x interface{}) {
	q.items = append(q.items, x.(audio.Buffer))
}

func (q *bufferQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *bufferQueue) peek() audio.Buffer {
	return q.items[0]
}
