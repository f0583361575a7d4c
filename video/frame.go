package video

import (
	"context"
	"sync"
)

// latestFrame holds the most recent JPEG frame. Readers wait for the next
// publish; slow readers simply see the newest frame.
type latestFrame struct {
	mu    sync.Mutex
	frame []byte
	ready chan struct{}
}

func newLatestFrame() *latestFrame {
	return &latestFrame{ready: make(chan struct{})}
}

func (l *latestFrame) publish(frame []byte) {
	l.mu.Lock()
	l.frame = frame
	close(l.ready)
	l.ready = make(chan struct{})
	l.mu.Unlock()
}

// current returns the last published frame, nil before the first publish.
func (l *latestFrame) current() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frame
}

// next waits for a frame published after the call.
func (l *latestFrame) next(ctx context.Context, done <-chan struct{}) ([]byte, error) {
	l.mu.Lock()
	ready := l.ready
	l.mu.Unlock()

	select {
	case <-ready:
		return l.current(), nil
	case <-done:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
