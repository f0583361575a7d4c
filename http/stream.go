package http

import (
	"context"
	"net/http"
	"time"

	"github.com/HudsonReynolds2/cameraStreamer/mjpeg"
	"github.com/gofrs/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/zeebo/xxh3"
)

const defaultRetryDelay = 100 * time.Millisecond

func NewStreamHandler(cam Camera) *StreamHandler {
	return &StreamHandler{cam: cam, RetryDelay: defaultRetryDelay}
}

// StreamHandler writes the camera feed to each client as an MJPEG stream,
// paced at the current frame rate.
type StreamHandler struct {
	cam Camera

	// Wait before asking again when no frame could be read
	RetryDelay time.Duration
}

func (sh *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := uuid.Must(uuid.NewV4())
	l := log.WithFields(log.Fields{"client": id.String(), "remote": r.RemoteAddr})

	mjpeg.WriteHeader(w)
	w.WriteHeader(http.StatusOK)
	mw := mjpeg.NewWriter(w)

	l.Info("stream client connected")
	defer l.Info("stream client disconnected")

	ctx := r.Context()
	var last uint64
	for {
		frame, err := sh.cam.Frame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.WithError(err).Debug("error reading frame")
			if !sleep(ctx, sh.RetryDelay) {
				return
			}
			continue
		}

		// unchanged frames are not sent again
		if h := xxh3.Hash(frame); h != last {
			if err := mw.WriteFrame(frame); err != nil {
				l.WithError(err).Debug("error writing frame")
				return
			}
			last = h
		}

		if !sleep(ctx, frameInterval(sh.cam.Settings().FrameRate)) {
			return
		}
	}
}

func frameInterval(fps int) time.Duration {
	if fps <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(fps)
}

// sleep waits d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
