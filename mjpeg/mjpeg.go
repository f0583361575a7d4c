// Package mjpeg writes Motion-JPEG streams as multipart/x-mixed-replace
// HTTP bodies.
//
// Every frame is one part:
//
//	--frame
//	Content-Type: image/jpeg
//	Content-Length: 1234
//
//	<jpeg bytes>
package mjpeg

import (
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

// Boundary separates the parts of the stream.
const Boundary = "frame"

// ContentType is the response content type of a stream.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// Writer writes JPEG frames as parts of a multipart stream.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter returns a Writer over w. Frames are flushed to the client as
// soon as they are written when w is an http.Flusher.
func NewWriter(w io.Writer) *Writer {
	mw := &Writer{w: w}
	if f, ok := w.(http.Flusher); ok {
		mw.flusher = f
	}
	return mw
}

// WriteFrame writes one JPEG frame.
func (mw *Writer) WriteFrame(jpeg []byte) error {
	if _, err := fmt.Fprintf(mw.w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(jpeg)); err != nil {
		return errors.Wrap(err, "error writing part header")
	}
	if _, err := mw.w.Write(jpeg); err != nil {
		return errors.Wrap(err, "error writing frame")
	}
	if _, err := io.WriteString(mw.w, "\r\n"); err != nil {
		return errors.Wrap(err, "error writing part trailer")
	}
	if mw.flusher != nil {
		mw.flusher.Flush()
	}
	return nil
}

// WriteHeader sets the stream headers on an HTTP response.
func WriteHeader(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", ContentType)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Connection", "close")
}
