package video

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Grabber reads frames from an opened camera device.
type Grabber interface {
	// Grab blocks until one JPEG frame has been read.
	Grab() ([]byte, error)
	Close() error
}

// Interrupter is implemented by grabbers whose Grab can block indefinitely.
// Interrupt must make a pending Grab return.
type Interrupter interface {
	Interrupt()
}

// Focuser is implemented by grabbers that change focus without a restart.
type Focuser interface {
	SetFocus(mode FocusMode, lensPosition float64) error
}

// Opener opens the device with the given settings.
type Opener func(s Settings) (Grabber, error)

const defaultRetryDelay = 50 * time.Millisecond

// Stream is a Driver built around a Grabber. While running, a reader
// goroutine grabs frames and publishes the latest one for Capture.
type Stream struct {
	name string
	open Opener

	// Delay before retrying a failed grab
	RetryDelay time.Duration

	mu       sync.Mutex
	settings Settings
	grabber  Grabber
	stop     chan struct{}
	done     chan struct{}

	latest *latestFrame
	log    *log.Entry
}

// NewStream creates a stopped driver named name.
func NewStream(name string, open Opener) *Stream {
	return &Stream{
		name:       name,
		open:       open,
		RetryDelay: defaultRetryDelay,
		latest:     newLatestFrame(),
		log:        log.WithField("driver", name),
	}
}

func (s *Stream) Name() string {
	return s.name
}

func (s *Stream) Configure(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return errors.Wrap(err, "error configuring stream")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grabber != nil {
		return ErrRunning
	}
	s.settings = settings
	return nil
}

func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start()
}

func (s *Stream) start() error {
	if s.grabber != nil {
		return nil
	}

	g, err := s.open(s.settings)
	if err != nil {
		return errors.Wrapf(err, "error opening %s", s.name)
	}

	s.grabber = g
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.startReader(g, s.stop, s.done)

	s.log.WithFields(log.Fields{
		"resolution": s.settings.Resolution.String(),
		"fps":        s.settings.FrameRate,
		"rotation":   s.settings.Rotation,
	}).Info("capture started")
	return nil
}

func (s *Stream) startReader(g Grabber, stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		frame, err := g.Grab()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			s.log.WithError(err).Debug("error reading frame")
			select {
			case <-stop:
				return
			case <-time.After(s.RetryDelay):
			}
			continue
		}
		if len(frame) == 0 {
			continue
		}

		s.latest.publish(frame)
	}
}

func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halt()
}

func (s *Stream) halt() error {
	g := s.grabber
	if g == nil {
		return nil
	}

	close(s.stop)
	if i, ok := g.(Interrupter); ok {
		i.Interrupt()
	}
	<-s.done
	s.grabber = nil

	if err := g.Close(); err != nil {
		return errors.Wrapf(err, "error closing %s", s.name)
	}
	s.log.Info("capture stopped")
	return nil
}

func (s *Stream) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	done := s.done
	running := s.grabber != nil
	s.mu.Unlock()

	if !running {
		return nil, ErrStopped
	}
	return s.latest.next(ctx, done)
}

func (s *Stream) SetFocus(mode FocusMode, lensPosition float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.settings
	next := prev
	next.Focus = mode
	next.LensPosition = lensPosition
	if err := next.Validate(); err != nil {
		return errors.Wrap(err, "error setting focus")
	}
	s.settings = next

	if s.grabber == nil {
		return nil
	}
	if f, ok := s.grabber.(Focuser); ok {
		if err := f.SetFocus(mode, lensPosition); err != nil {
			s.settings = prev
			return errors.Wrap(err, "error setting focus")
		}
		return nil
	}

	// the device only takes focus at open time
	if err := s.halt(); err != nil {
		s.log.WithError(err).Warn("error closing device for focus change")
	}
	if err := s.start(); err != nil {
		s.settings = prev
		if rerr := s.start(); rerr != nil {
			s.log.WithError(rerr).Error("error reopening with previous focus")
		}
		return errors.Wrap(err, "error applying focus")
	}
	return nil
}

func (s *Stream) Close() error {
	return s.Stop()
}
