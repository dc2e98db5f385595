package audio

import (
	"errors"
	"sync"
)

// ErrQueueClosed is returned by Append and Next once the queue has been closed.
var ErrQueueClosed = errors.New("audio: frame queue is closed")

// BackpressurePolicy selects what Append does when the queue is full.
type BackpressurePolicy string

const (
	// BackpressureBlock makes Append wait until the consumer frees capacity.
	// Suitable for file-driven harnesses where the producer can stall.
	BackpressureBlock BackpressurePolicy = "block"

	// BackpressureDropOldest discards the oldest unconsumed frame to make room.
	// Every dropped frame is counted and reported through the drop callback.
	// This is the default: a live capture device must never be stalled.
	BackpressureDropOldest BackpressurePolicy = "drop-oldest"
)

// IsValid reports whether p is a recognised backpressure policy.
func (p BackpressurePolicy) IsValid() bool {
	return p == BackpressureBlock || p == BackpressureDropOldest
}

// FrameQueue is a bounded FIFO buffer between the audio producer and the
// pipeline consumer. Ordering is strict: frames are delivered in append order
// with no reordering, and a frame is consumed exactly once.
//
// Append and Next are safe for concurrent use, but the queue is designed for
// a single consumer; concurrent Next callers would race for frames.
type FrameQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	frames   []Frame
	capacity int
	policy   BackpressurePolicy
	closed   bool
	dropped  uint64
	onDrop   func(Frame)
}

// QueueOption is a functional option for configuring a FrameQueue.
type QueueOption func(*FrameQueue)

// WithBackpressure sets the policy applied when the queue is full.
// Default is [BackpressureDropOldest].
func WithBackpressure(p BackpressurePolicy) QueueOption {
	return func(q *FrameQueue) { q.policy = p }
}

// WithDropCallback registers fn to be called (outside the queue lock is NOT
// guaranteed; fn must be cheap and non-blocking) for every frame discarded
// under the drop-oldest policy. Used to feed the counted-loss metric.
func WithDropCallback(fn func(Frame)) QueueOption {
	return func(q *FrameQueue) { q.onDrop = fn }
}

// NewFrameQueue creates a queue holding at most capacity frames.
// Capacity must be positive; unbounded growth is not an option.
func NewFrameQueue(capacity int, opts ...QueueOption) *FrameQueue {
	if capacity <= 0 {
		capacity = 1
	}
	q := &FrameQueue{
		capacity: capacity,
		policy:   BackpressureDropOldest,
	}
	for _, o := range opts {
		o(q)
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Append enqueues frame. When the queue is full it either blocks or drops the
// oldest unconsumed frame, depending on the configured policy. Returns
// [ErrQueueClosed] once Close has been called.
func (q *FrameQueue) Append(frame Frame) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) >= q.capacity {
		if q.closed {
			return ErrQueueClosed
		}
		if q.policy == BackpressureDropOldest {
			victim := q.frames[0]
			q.frames = q.frames[1:]
			q.dropped++
			if q.onDrop != nil {
				q.onDrop(victim)
			}
			break
		}
		q.notFull.Wait()
	}
	if q.closed {
		return ErrQueueClosed
	}

	q.frames = append(q.frames, frame)
	q.notEmpty.Signal()
	return nil
}

// Next blocks until a frame is available and returns it. Once the queue is
// closed and drained, Next returns [ErrQueueClosed].
func (q *FrameQueue) Next() (Frame, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.frames) == 0 {
		if q.closed {
			return Frame{}, ErrQueueClosed
		}
		q.notEmpty.Wait()
	}

	frame := q.frames[0]
	q.frames = q.frames[1:]
	q.notFull.Signal()
	return frame, nil
}

// Len returns the number of buffered frames.
func (q *FrameQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.frames)
}

// Dropped returns the total number of frames discarded under the drop-oldest
// policy since the queue was created.
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close marks the queue closed. Pending Next calls drain the remaining frames
// and then receive [ErrQueueClosed]; blocked Append calls are released with
// the same error. Close is safe to call multiple times.
func (q *FrameQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}
