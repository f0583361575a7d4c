package video

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// Still is a single captured JPEG and where it ended up.
type Still struct {
	Name string
	Time time.Time
	Data []byte

	// Path of the local copy, set by LocalWriter
	Path string

	// Location of the uploaded copy, set by S3Writer
	Location string
}

// NewStill names frame after the capture time.
func NewStill(frame []byte, t time.Time) *Still {
	return &Still{
		Name: fmt.Sprintf("capture_%s.jpg", t.Format("20060102_150405")),
		Time: t,
		Data: frame,
	}
}

// StillWriter stores captured stills.
type StillWriter interface {
	Write(s *Still) error
}

// LocalWriter writes stills into a directory.
type LocalWriter struct {
	dir string
}

func NewLocalWriter(dir string) *LocalWriter {
	return &LocalWriter{dir: dir}
}

func (lw *LocalWriter) Dir() string {
	return lw.dir
}

func (lw *LocalWriter) Write(s *Still) error {
	if err := os.MkdirAll(lw.dir, 0o755); err != nil {
		return errors.Wrapf(err, "error creating %s", lw.dir)
	}

	fn := filepath.Join(lw.dir, s.Name)
	if err := os.WriteFile(fn, s.Data, 0o644); err != nil {
		return errors.Wrap(err, "error writing still to local writer")
	}

	s.Path = fn
	return nil
}

// Uploader stores a blob under key and returns its location.
type Uploader interface {
	UploadFile(r io.Reader, key string) (string, error)
}

// S3Writer uploads stills, grouped in one folder per day.
type S3Writer struct {
	S3     Uploader
	Prefix string
}

func NewS3Writer(u Uploader, prefix string) *S3Writer {
	return &S3Writer{S3: u, Prefix: prefix}
}

func (s3 *S3Writer) key(s *Still) string {
	t := s.Time
	return path.Join(s3.Prefix, fmt.Sprintf("%d-%s-%d", t.Year(), t.Month(), t.Day()), s.Name)
}

func (s3 *S3Writer) Write(s *Still) error {
	location, err := s3.S3.UploadFile(bytes.NewReader(s.Data), s3.key(s))
	if err != nil {
		return errors.Wrap(err, "error uploading still")
	}
	s.Location = location
	return nil
}
