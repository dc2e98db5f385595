package audio_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hushlabs/hearth/pkg/audio"
)

func frame(n int16) audio.Frame {
	return audio.Frame{Samples: []int16{n, n, n, n}, SampleRate: 16000}
}

func TestQueueFIFOOrder(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(8)
	for i := int16(0); i < 5; i++ {
		if err := q.Append(frame(i)); err != nil {
			t.Fatalf("Append: unexpected error: %v", err)
		}
	}

	for i := int16(0); i < 5; i++ {
		got, err := q.Next()
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if got.Samples[0] != i {
			t.Fatalf("Next: expected frame %d, got %d", i, got.Samples[0])
		}
	}
}

func TestQueueDropOldest(t *testing.T) {
	t.Parallel()

	var droppedFrames []audio.Frame
	q := audio.NewFrameQueue(2,
		audio.WithBackpressure(audio.BackpressureDropOldest),
		audio.WithDropCallback(func(f audio.Frame) { droppedFrames = append(droppedFrames, f) }),
	)

	for i := int16(0); i < 4; i++ {
		if err := q.Append(frame(i)); err != nil {
			t.Fatalf("Append: unexpected error: %v", err)
		}
	}

	if q.Dropped() != 2 {
		t.Fatalf("Dropped: expected 2, got %d", q.Dropped())
	}
	if len(droppedFrames) != 2 || droppedFrames[0].Samples[0] != 0 || droppedFrames[1].Samples[0] != 1 {
		t.Fatalf("drop callback: expected frames 0 and 1, got %v", droppedFrames)
	}

	// The survivors are the two newest frames, still in order.
	first, _ := q.Next()
	second, _ := q.Next()
	if first.Samples[0] != 2 || second.Samples[0] != 3 {
		t.Fatalf("expected frames 2 and 3 to survive, got %d and %d", first.Samples[0], second.Samples[0])
	}
}

func TestQueueBlockPolicy(t *testing.T) {
	t.Parallel()

	q := audio.NewFrameQueue(1, audio.WithBackpressure(audio.BackpressureBlock))
	if err := q.Append(frame(0)); err != nil {
		t.Fatalf("Append: unexpected error: %v", err)
	}

	appended := make(chan error, 1)
	go func() { appended <- q.Append(frame(1)) }()

	select {
	case err := <-appended:
		t.Fatalf("Append returned (%v) before consumer freed capacity", err)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := q.Next(); err != nil {
		t.Fatalf("Next: unexpected error: %v", err)
	}
	select {
	case err := <-appended:
		if err != nil {
			t.Fatalf("blocked Append: unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Append did not complete after Next")
	}
	if q.Dropped() != 0 {
		t.Fatalf("block policy must not drop frames, dropped %d", q.Dropped())
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	t.Run("append after close fails", func(t *testing.T) {
		t.Parallel()
		q := audio.NewFrameQueue(4)
		q.Close()
		if err := q.Append(frame(0)); !errors.Is(err, audio.ErrQueueClosed) {
			t.Fatalf("Append: expected ErrQueueClosed, got %v", err)
		}
	})

	t.Run("next drains remaining frames then fails", func(t *testing.T) {
		t.Parallel()
		q := audio.NewFrameQueue(4)
		_ = q.Append(frame(7))
		q.Close()

		got, err := q.Next()
		if err != nil {
			t.Fatalf("Next: unexpected error draining: %v", err)
		}
		if got.Samples[0] != 7 {
			t.Fatalf("Next: expected buffered frame 7, got %d", got.Samples[0])
		}
		if _, err := q.Next(); !errors.Is(err, audio.ErrQueueClosed) {
			t.Fatalf("Next: expected ErrQueueClosed after drain, got %v", err)
		}
	})

	t.Run("close releases blocked consumer", func(t *testing.T) {
		t.Parallel()
		q := audio.NewFrameQueue(4)

		var wg sync.WaitGroup
		wg.Add(1)
		var nextErr error
		go func() {
			defer wg.Done()
			_, nextErr = q.Next()
		}()

		time.Sleep(20 * time.Millisecond)
		q.Close()
		wg.Wait()

		if !errors.Is(nextErr, audio.ErrQueueClosed) {
			t.Fatalf("Next: expected ErrQueueClosed, got %v", nextErr)
		}
	})
}

func TestFrameDuration(t *testing.T) {
	t.Parallel()

	f := audio.Frame{Samples: make([]int16, 160), SampleRate: 16000}
	if got := f.Duration(); got != 10*time.Millisecond {
		t.Fatalf("Duration: expected 10ms, got %v", got)
	}
}

func TestFrameBytes(t *testing.T) {
	t.Parallel()

	f := audio.Frame{Samples: []int16{0x0102, -2}}
	got := f.Bytes()
	want := []byte{0x02, 0x01, 0xFE, 0xFF}
	if len(got) != len(want) {
		t.Fatalf("Bytes: expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Bytes[%d]: expected %#x, got %#x", i, want[i], got[i])
		}
	}
}
