package video

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var (
	jpegHeader  = []byte{0xFF, 0xD8}
	jpegTrailer = []byte{0xFF, 0xD9}
)

// maxFrameSize bounds a single JPEG in a raw MJPEG byte stream.
const maxFrameSize = 32 << 20

// splitJPEG is a bufio.SplitFunc that cuts a raw MJPEG byte stream into
// frames at the JPEG end-of-image marker.
func splitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.Index(data, jpegTrailer); i >= 0 {
		return i + len(jpegTrailer), data[0 : i+len(jpegTrailer)], nil
	}

	if atEOF {
		return len(data), nil, io.ErrUnexpectedEOF
	}

	// Request more data.
	return 0, nil, nil
}

// demuxer reads consecutive JPEG frames from a raw MJPEG byte stream.
type demuxer struct {
	scanner *bufio.Scanner
}

func newDemuxer(r io.Reader) *demuxer {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 1<<20), maxFrameSize)
	s.Split(splitJPEG)
	return &demuxer{scanner: s}
}

// next returns the next frame. The slice is owned by the caller.
func (d *demuxer) next() ([]byte, error) {
	for d.scanner.Scan() {
		token := d.scanner.Bytes()
		start := bytes.Index(token, jpegHeader)
		if start < 0 {
			// trailing garbage or a marker inside a broken frame
			continue
		}
		frame := make([]byte, len(token)-start)
		copy(frame, token[start:])
		return frame, nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading mjpeg stream")
	}
	return nil, io.EOF
}
