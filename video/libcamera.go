package video

import (
	"io"
	"os/exec"
	"strconv"
	"sync"

	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func init() {
	RegisterDriver("libcamera", func(cfg config.CameraConfig) (Driver, error) {
		command := cfg.Command
		if command == "" {
			command = "rpicam-vid"
		}
		if _, err := exec.LookPath(command); err != nil {
			return nil, errors.Wrapf(err, "libcamera driver needs %s", command)
		}
		return NewLibcameraDriver(command), nil
	})
}

// NewLibcameraDriver returns a driver that reads MJPEG from rpicam-vid
// (or libcamera-vid) running as a child process.
func NewLibcameraDriver(command string) *Stream {
	return NewStream("libcamera", func(s Settings) (Grabber, error) {
		g := &processGrabber{name: command, args: libcameraArgs(s)}
		if _, _, err := g.launch(); err != nil {
			return nil, err
		}
		return g, nil
	})
}

// libcameraArgs builds the rpicam-vid command line for s. Focus and
// rotation are applied by the camera pipeline, so frames pass through.
func libcameraArgs(s Settings) []string {
	args := []string{
		"--nopreview",
		"--timeout", "0",
		"--codec", "mjpeg",
		"--width", strconv.Itoa(s.Resolution.Width),
		"--height", strconv.Itoa(s.Resolution.Height),
		"--framerate", strconv.Itoa(s.FrameRate),
		"--quality", strconv.Itoa(s.Quality),
	}

	t := s.Transform()
	if t.HFlip {
		args = append(args, "--hflip")
	}
	if t.VFlip {
		args = append(args, "--vflip")
	}

	if s.Focus == FocusManual {
		args = append(args, "--autofocus-mode", "manual", "--lens-position", strconv.FormatFloat(s.LensPosition, 'f', 1, 64))
	} else {
		args = append(args, "--autofocus-mode", "continuous")
	}

	return append(args, "--output", "-")
}

// processGrabber runs a command that writes a raw MJPEG stream to stdout.
// The command is relaunched by the next Grab after it exits, and that Grab
// returns the first frame of the new process.
type processGrabber struct {
	name string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdout io.ReadCloser
	demux  *demuxer
	closed bool
}

// launch starts the command. A grabber closed in the meantime kills it
// again and reports ErrStopped.
func (g *processGrabber) launch() (*exec.Cmd, *demuxer, error) {
	cmd := exec.Command(g.name, g.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, errors.Wrap(err, "error creating stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, errors.Wrapf(err, "error starting %s", g.name)
	}
	demux := newDemuxer(stdout)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		cmd.Process.Kill()
		cmd.Wait()
		return nil, nil, ErrStopped
	}
	g.cmd = cmd
	g.stdout = stdout
	g.demux = demux
	g.mu.Unlock()

	log.WithFields(log.Fields{"command": g.name, "pid": cmd.Process.Pid}).Debug("camera process started")
	return cmd, demux, nil
}

func (g *processGrabber) Grab() ([]byte, error) {
	g.mu.Lock()
	closed := g.closed
	cmd := g.cmd
	demux := g.demux
	g.mu.Unlock()

	if closed {
		return nil, ErrStopped
	}
	if cmd == nil {
		var err error
		if cmd, demux, err = g.launch(); err != nil {
			return nil, err
		}
	}

	frame, err := demux.next()
	if err == nil {
		return frame, nil
	}

	// Close reaps the process itself once it took it over
	g.mu.Lock()
	owned := g.cmd == cmd
	if owned {
		g.cmd = nil
	}
	g.mu.Unlock()
	if owned {
		werr := cmd.Wait()
		log.WithError(werr).WithField("command", g.name).Warn("camera process exited")
	}
	return nil, errors.Wrapf(err, "%s output ended", g.name)
}

// Interrupt kills the process so a pending Grab returns.
func (g *processGrabber) Interrupt() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	if g.cmd != nil && g.cmd.Process != nil {
		g.cmd.Process.Kill()
	}
}

func (g *processGrabber) Close() error {
	g.mu.Lock()
	g.closed = true
	cmd := g.cmd
	g.cmd = nil
	g.mu.Unlock()

	if cmd == nil {
		return nil
	}
	if cmd.Process != nil {
		cmd.Process.Kill()
	}
	// killed processes report an exit error
	cmd.Wait()
	return nil
}
