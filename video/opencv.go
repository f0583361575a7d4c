//go:build gocv

package video

import (
	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func init() {
	RegisterDriver("opencv", func(cfg config.CameraConfig) (Driver, error) {
		device := cfg.Device
		if device == "" {
			device = "0"
		}
		return NewOpenCVDriver(device), nil
	})
}

// NewOpenCVDriver returns a driver reading from an OpenCV video capture.
// device is a camera index ("0" is the first webcam) or a file/URL.
func NewOpenCVDriver(device string) *Stream {
	return NewStream("opencv", func(s Settings) (Grabber, error) {
		return openOpenCV(device, s)
	})
}

type opencvGrabber struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	enc     *Encoder
}

func openOpenCV(device string, s Settings) (Grabber, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open video capture %s", device)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(s.Resolution.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(s.Resolution.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(s.FrameRate))

	g := &opencvGrabber{capture: capture, mat: gocv.NewMat(), enc: NewEncoder(s.Transform(), s.Quality)}
	g.SetFocus(s.Focus, s.LensPosition)
	return g, nil
}

func (g *opencvGrabber) Grab() ([]byte, error) {
	if ok := g.capture.Read(&g.mat); !ok || g.mat.Empty() {
		return nil, errors.New("cannot read frame")
	}
	img, err := g.mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "error converting frame")
	}
	return g.enc.Encode(img)
}

func (g *opencvGrabber) SetFocus(mode FocusMode, lensPosition float64) error {
	if mode == FocusContinuous {
		g.capture.Set(gocv.VideoCaptureAutoFocus, 1)
		return nil
	}
	g.capture.Set(gocv.VideoCaptureAutoFocus, 0)
	// OpenCV focus is driver-defined; most UVC cameras use 0..255
	g.capture.Set(gocv.VideoCaptureFocus, lensPosition/MaxLensPosition*255)
	return nil
}

func (g *opencvGrabber) Close() error {
	g.mat.Close()
	return g.capture.Close()
}
