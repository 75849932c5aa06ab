package frame

import (
	"context"
	"sync/atomic"
)

type pending struct {
	frame Frame
	err   error
}

// Latest decouples a capture source from its consumer with a mailbox of
// depth one. When the consumer falls behind, the queued frame is released
// and replaced, so Next always yields the newest frame rather than backlog.
type Latest struct {
	src     Source
	out     chan pending
	cancel  context.CancelFunc
	done    chan struct{}
	dropped atomic.Int64
}

// NewLatest starts pulling from src in a background goroutine until ctx is
// cancelled, Close is called, or src returns an error.
func NewLatest(ctx context.Context, src Source) *Latest {
	ctx, cancel := context.WithCancel(ctx)
	l := &Latest{
		src:    src,
		out:    make(chan pending, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run(ctx)
	return l
}

func (l *Latest) run(ctx context.Context) {
	defer close(l.done)
	defer close(l.out)
	for {
		f, err := l.src.Next(ctx)
		l.offer(pending{frame: f, err: err})
		if err != nil {
			return
		}
	}
}

// offer never blocks: a stale queued frame is evicted to make room.
func (l *Latest) offer(p pending) {
	for {
		select {
		case l.out <- p:
			return
		default:
		}
		select {
		case old := <-l.out:
			old.frame.Release()
			l.dropped.Add(1)
		default:
		}
	}
}

func (l *Latest) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case p, ok := <-l.out:
		if !ok {
			return Frame{}, ErrEndOfStream
		}
		return p.frame, p.err
	}
}

// Dropped reports how many frames were discarded in favour of newer ones.
func (l *Latest) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops the producer and releases any frame still queued.
func (l *Latest) Close() {
	l.cancel()
	for p := range l.out {
		p.frame.Release()
	}
	<-l.done
}
