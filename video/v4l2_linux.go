//go:build linux

package video

import (
	"sort"

	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/blackjack/webcam"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	v4l2PixFmtMJPEG = 0x47504A4D // 'MJPG'
	v4l2PixFmtJPEG  = 0x4745504A // 'JPEG'
	v4l2PixFmtYUYV  = 0x56595559 // 'YUYV'

	v4l2CIDFocusAbsolute webcam.ControlID = 0x009a090a
	v4l2CIDFocusAuto     webcam.ControlID = 0x009a090c

	v4l2BufferCount = 4
	v4l2WaitTimeout = 1 // seconds
)

// preferred pixel formats, best first
var v4l2Formats = []webcam.PixelFormat{v4l2PixFmtMJPEG, v4l2PixFmtJPEG, v4l2PixFmtYUYV}

func init() {
	RegisterDriver("v4l2", func(cfg config.CameraConfig) (Driver, error) {
		return NewV4L2Driver(cfg.Device), nil
	})
}

// NewV4L2Driver returns a driver for a Video4Linux2 device such as /dev/video0.
func NewV4L2Driver(device string) *Stream {
	return NewStream("v4l2", func(s Settings) (Grabber, error) {
		return openV4L2(device, s)
	})
}

type v4l2Grabber struct {
	cam    *webcam.Webcam
	format webcam.PixelFormat
	width  int
	height int
	enc    *Encoder
}

type frameSizes []webcam.FrameSize

func (fs frameSizes) Len() int      { return len(fs) }
func (fs frameSizes) Swap(i, j int) { fs[i], fs[j] = fs[j], fs[i] }

// sort by area
func (fs frameSizes) Less(i, j int) bool {
	return fs[i].MaxWidth*fs[i].MaxHeight < fs[j].MaxWidth*fs[j].MaxHeight
}

func openV4L2(device string, s Settings) (Grabber, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", device)
	}

	g := &v4l2Grabber{cam: cam, enc: NewEncoder(s.Transform(), s.Quality)}
	if err := g.configure(device, s); err != nil {
		cam.Close()
		return nil, err
	}
	return g, nil
}

func (g *v4l2Grabber) configure(device string, s Settings) error {
	supported := g.cam.GetSupportedFormats()

	var format webcam.PixelFormat
	for _, f := range v4l2Formats {
		if _, ok := supported[f]; ok {
			format = f
			break
		}
	}
	if format == 0 {
		return errors.Errorf("%s: no supported pixel format in %v", device, supported)
	}

	w, h := closestFrameSize(g.cam.GetSupportedFrameSizes(format), s.Resolution)
	f, cw, ch, err := g.cam.SetImageFormat(format, w, h)
	if err != nil {
		return errors.Wrapf(err, "%s: error setting image format", device)
	}
	g.format = f
	g.width = int(cw)
	g.height = int(ch)

	entry := log.WithFields(log.Fields{"device": device, "format": supported[f], "size": Resolution{Width: g.width, Height: g.height}.String()})
	if err := g.cam.SetFramerate(float32(s.FrameRate)); err != nil {
		entry.WithError(err).Warn("frame rate not accepted")
	}
	if err := g.cam.SetBufferCount(v4l2BufferCount); err != nil {
		entry.WithError(err).Warn("buffer count not accepted")
	}
	if err := g.SetFocus(s.Focus, s.LensPosition); err != nil {
		entry.WithError(err).Warn("focus not accepted")
	}

	if err := g.cam.StartStreaming(); err != nil {
		return errors.Wrapf(err, "%s: error starting stream", device)
	}
	entry.Debug("device configured")
	return nil
}

// closestFrameSize picks the supported size nearest to the requested
// resolution. Stepwise ranges accept the request as is.
func closestFrameSize(sizes []webcam.FrameSize, want Resolution) (uint32, uint32) {
	w, h := uint32(want.Width), uint32(want.Height)
	if len(sizes) == 0 {
		return w, h
	}
	sort.Sort(frameSizes(sizes))

	best := sizes[len(sizes)-1]
	bestDiff := int64(-1)
	for _, fs := range sizes {
		if fs.StepWidth != 0 || fs.StepHeight != 0 {
			if w >= fs.MinWidth && w <= fs.MaxWidth && h >= fs.MinHeight && h <= fs.MaxHeight {
				return w, h
			}
			continue
		}
		diff := int64(fs.MaxWidth)*int64(fs.MaxHeight) - int64(w)*int64(h)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = fs, diff
		}
	}
	return best.MaxWidth, best.MaxHeight
}

func (g *v4l2Grabber) Grab() ([]byte, error) {
	err := g.cam.WaitForFrame(v4l2WaitTimeout)
	switch err.(type) {
	case nil:
	case *webcam.Timeout:
		return nil, errors.Wrap(err, "timeout waiting for frame")
	default:
		return nil, errors.Wrap(err, "error waiting for frame")
	}

	frame, err := g.cam.ReadFrame()
	if err != nil {
		return nil, errors.Wrap(err, "error reading frame")
	}
	if len(frame) == 0 {
		return nil, nil
	}

	if g.format == v4l2PixFmtYUYV {
		img, err := yuyvImage(frame, g.width, g.height)
		if err != nil {
			return nil, err
		}
		return g.enc.Encode(img)
	}

	// the frame buffer is reused by the driver
	jpg := make([]byte, len(frame))
	copy(jpg, frame)
	return g.enc.Reencode(jpg)
}

// SetFocus switches autofocus and maps the lens position onto the
// device's absolute focus range.
func (g *v4l2Grabber) SetFocus(mode FocusMode, lensPosition float64) error {
	if mode == FocusContinuous {
		return errors.Wrap(g.cam.SetControl(v4l2CIDFocusAuto, 1), "error enabling autofocus")
	}

	if err := g.cam.SetControl(v4l2CIDFocusAuto, 0); err != nil {
		return errors.Wrap(err, "error disabling autofocus")
	}
	ctrl, ok := g.cam.GetControls()[v4l2CIDFocusAbsolute]
	if !ok {
		return errors.New("device has no absolute focus control")
	}
	value := ctrl.Min + int32(lensPosition/MaxLensPosition*float64(ctrl.Max-ctrl.Min))
	return errors.Wrap(g.cam.SetControl(v4l2CIDFocusAbsolute, value), "error setting focus")
}

func (g *v4l2Grabber) Close() error {
	if err := g.cam.StopStreaming(); err != nil {
		log.WithError(err).Debug("error stopping v4l2 stream")
	}
	return g.cam.Close()
}
