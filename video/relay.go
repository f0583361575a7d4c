package video

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/mattn/go-mjpeg"
	"github.com/pkg/errors"
)

func init() {
	RegisterDriver("mjpeg", func(cfg config.CameraConfig) (Driver, error) {
		if cfg.Device == "" {
			return nil, errors.New("mjpeg driver needs an upstream URL as device")
		}
		return NewRelayDriver(cfg.Device, http.DefaultClient), nil
	})
}

// NewRelayDriver returns a driver that re-serves an upstream MJPEG stream,
// for instance the feed of another instance running on a Windows host.
// Resolution and frame rate are whatever the upstream sends.
func NewRelayDriver(url string, client *http.Client) *Stream {
	return NewStream("mjpeg", func(s Settings) (Grabber, error) {
		ctx, cancel := context.WithCancel(context.Background())
		g := &relayGrabber{url: url, client: client, enc: NewEncoder(s.Transform(), s.Quality), ctx: ctx, cancel: cancel}
		if err := g.connect(); err != nil {
			cancel()
			return nil, err
		}
		return g, nil
	})
}

type relayGrabber struct {
	url    string
	client *http.Client
	enc    *Encoder

	// ends requests in flight once the grabber is interrupted
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	resp   *http.Response
	dec    *mjpeg.Decoder
	closed bool
}

func (g *relayGrabber) connect() error {
	req, err := http.NewRequestWithContext(g.ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return errors.Wrapf(err, "invalid upstream url %s", g.url)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error connecting to %s", g.url)
	}
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "multipart/") {
		resp.Body.Close()
		return errors.Errorf("%s is not an mjpeg stream (%s, %s)", g.url, resp.Status, resp.Header.Get("Content-Type"))
	}
	dec, err := mjpeg.NewDecoderFromResponse(resp)
	if err != nil {
		resp.Body.Close()
		return errors.Wrapf(err, "%s is not an mjpeg stream", g.url)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		resp.Body.Close()
		return ErrStopped
	}
	g.resp = resp
	g.dec = dec
	return nil
}

func (g *relayGrabber) Grab() ([]byte, error) {
	g.mu.Lock()
	dec := g.dec
	g.mu.Unlock()

	if dec == nil {
		return nil, g.connect()
	}

	frame, err := dec.DecodeRaw()
	if err != nil {
		g.disconnect()
		return nil, errors.Wrapf(err, "error reading from %s", g.url)
	}
	return g.enc.Reencode(frame)
}

func (g *relayGrabber) disconnect() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resp != nil {
		g.resp.Body.Close()
	}
	g.resp = nil
	g.dec = nil
}

// Interrupt closes the upstream body so a pending Grab returns.
func (g *relayGrabber) Interrupt() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.cancel()
	g.disconnect()
}

// SetFocus is accepted and ignored: the upstream owns the lens.
func (g *relayGrabber) SetFocus(mode FocusMode, lensPosition float64) error {
	return nil
}

func (g *relayGrabber) Close() error {
	g.Interrupt()
	return nil
}
