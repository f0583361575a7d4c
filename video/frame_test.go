package video

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestFrameNextWaitsForPublish(t *testing.T) {
	l := newLatestFrame()
	l.publish([]byte("old"))

	got := make(chan []byte, 1)
	go func() {
		f, err := l.next(context.Background(), nil)
		if err == nil {
			got <- f
		}
	}()

	select {
	case <-got:
		t.Fatal("next returned a frame published before the call")
	case <-time.After(20 * time.Millisecond):
	}

	l.publish([]byte("new"))
	select {
	case f := <-got:
		assert.Equal(t, []byte("new"), f)
	case <-time.After(time.Second):
		t.Fatal("next did not return after publish")
	}
	assert.Equal(t, []byte("new"), l.current())
}

func TestLatestFrameNextCancelled(t *testing.T) {
	l := newLatestFrame()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.next(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLatestFrameNextStopped(t *testing.T) {
	l := newLatestFrame()
	done := make(chan struct{})
	close(done)

	_, err := l.next(context.Background(), done)
	require.ErrorIs(t, err, ErrStopped)
}
