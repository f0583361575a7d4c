package video

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/HudsonReynolds2/cameraStreamer/config"
)

func init() {
	RegisterDriver("test", func(cfg config.CameraConfig) (Driver, error) {
		return NewSyntheticDriver(), nil
	})
}

// NewSyntheticDriver returns a driver that draws a moving test pattern
// instead of reading a device.
func NewSyntheticDriver() *Stream {
	return NewStream("test", openSynthetic)
}

type syntheticGrabber struct {
	settings Settings
	enc      *Encoder
	ticker   *time.Ticker
	frameNum int

	mu           sync.Mutex
	focus        FocusMode
	lensPosition float64
}

func openSynthetic(s Settings) (Grabber, error) {
	return &syntheticGrabber{
		settings:     s,
		enc:          NewEncoder(s.Transform(), s.Quality),
		ticker:       time.NewTicker(time.Second / time.Duration(s.FrameRate)),
		focus:        s.Focus,
		lensPosition: s.LensPosition,
	}, nil
}

func (g *syntheticGrabber) Grab() ([]byte, error) {
	<-g.ticker.C
	img := g.draw(g.frameNum)
	g.frameNum++
	return g.enc.Encode(img)
}

// draw renders a gradient background that changes over time with a
// rectangle moving across it.
func (g *syntheticGrabber) draw(frameNum int) image.Image {
	w, h := g.settings.Resolution.Width, g.settings.Resolution.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	r := uint8((frameNum * 2) % 255)
	gr := uint8((frameNum * 3) % 255)
	b := uint8((frameNum * 5) % 255)
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{r, gr, b, 255}}, image.Point{}, draw.Src)

	size := h / 8
	if size < 1 {
		size = 1
	}
	x := (frameNum * 5) % max(w-size, 1)
	y := (frameNum * 3) % max(h-size, 1)
	rect := image.Rect(x, y, x+size, y+size)
	draw.Draw(img, rect, &image.Uniform{color.RGBA{255 - r, 255 - gr, 255 - b, 255}}, image.Point{}, draw.Src)

	return img
}

func (g *syntheticGrabber) SetFocus(mode FocusMode, lensPosition float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.focus = mode
	g.lensPosition = lensPosition
	return nil
}

func (g *syntheticGrabber) Close() error {
	g.ticker.Stop()
	return nil
}
