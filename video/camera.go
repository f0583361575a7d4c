package video

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const stillTimeout = 5 * time.Second

// Camera owns the capture driver and the current settings. Every settings
// change goes through a stop, configure, start cycle on the driver.
type Camera struct {
	driver Driver

	// Delay after every restart for the sensor to settle
	SettleDelay time.Duration

	// Writers receive every captured still, in order
	Writers []StillWriter

	// Clock used to name stills
	Now func() time.Time

	// serializes restarts and still captures against each other
	restartMu sync.Mutex

	mu       sync.RWMutex
	settings Settings
}

// NewCamera creates a camera over driver with the initial settings.
func NewCamera(driver Driver, s Settings) *Camera {
	return &Camera{
		driver:      driver,
		settings:    s,
		SettleDelay: time.Second,
		Now:         time.Now,
	}
}

func (c *Camera) store(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

// DriverName returns the name of the driver in use.
func (c *Camera) DriverName() string {
	return c.driver.Name()
}

// Start configures and starts the driver, then waits warmUp.
func (c *Camera) Start(warmUp time.Duration) error {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	if err := c.driver.Configure(c.Settings()); err != nil {
		return errors.Wrap(err, "error configuring camera")
	}
	if err := c.driver.Start(); err != nil {
		return errors.Wrap(err, "error starting camera")
	}
	time.Sleep(warmUp)
	return nil
}

// Settings returns a copy of the current settings.
func (c *Camera) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Frame returns the next JPEG frame from the driver.
func (c *Camera) Frame(ctx context.Context) ([]byte, error) {
	return c.driver.Capture(ctx)
}

// UpdateSettings changes the resolution and frame rate and restarts capture.
func (c *Camera) UpdateSettings(resolution string, frameRate int) (Settings, error) {
	res, ok := LookupResolution(resolution)
	if !ok {
		return c.Settings(), errors.Errorf("unknown resolution %q", resolution)
	}
	return c.apply(func(s *Settings) {
		s.Resolution = res
		s.FrameRate = frameRate
	})
}

// Rotate advances the rotation by 90 degrees and restarts capture.
func (c *Camera) Rotate() (Settings, error) {
	return c.apply(func(s *Settings) {
		s.Rotation = NextRotation(s.Rotation)
	})
}

// SetFocusMode switches between continuous and manual focus. Manual mode
// applies the stored lens position. When the driver rejects the change the
// previous mode is kept.
func (c *Camera) SetFocusMode(mode FocusMode) (Settings, error) {
	if _, err := ParseFocusMode(string(mode)); err != nil {
		return c.Settings(), err
	}

	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	prev := c.Settings()
	s := prev
	s.Focus = mode
	if err := c.driver.SetFocus(s.Focus, s.LensPosition); err != nil {
		return prev, errors.Wrap(err, "error changing focus mode")
	}
	c.store(s)
	return s, nil
}

// SetLensPosition stores the manual focus position. The driver only sees
// it while the camera is in manual mode.
func (c *Camera) SetLensPosition(pos float64) (Settings, error) {
	if pos < MinLensPosition || pos > MaxLensPosition {
		return c.Settings(), errors.Errorf("lens position %.1f out of range %.0f..%.0f", pos, MinLensPosition, MaxLensPosition)
	}

	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	prev := c.Settings()
	s := prev
	s.LensPosition = pos
	if s.Focus == FocusManual {
		if err := c.driver.SetFocus(s.Focus, s.LensPosition); err != nil {
			return prev, errors.Wrap(err, "error setting lens position")
		}
	}
	c.store(s)
	return s, nil
}

// apply validates the mutated settings and restarts the driver with them.
// On failure the previous settings are restored.
func (c *Camera) apply(mutate func(*Settings)) (Settings, error) {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	prev := c.Settings()
	next := prev
	mutate(&next)
	if err := next.Validate(); err != nil {
		return prev, err
	}

	if err := c.restart(next); err != nil {
		log.WithError(err).Error("restart failed, restoring previous settings")
		if rerr := c.restart(prev); rerr != nil {
			log.WithError(rerr).Error("error restoring previous settings")
		}
		return c.Settings(), err
	}
	return next, nil
}

func (c *Camera) restart(s Settings) error {
	if err := c.driver.Stop(); err != nil {
		return errors.Wrap(err, "error stopping camera")
	}
	if err := c.driver.Configure(s); err != nil {
		return errors.Wrap(err, "error configuring camera")
	}

	c.store(s)

	if err := c.driver.Start(); err != nil {
		return errors.Wrap(err, "error starting camera")
	}
	time.Sleep(c.SettleDelay)
	return nil
}

// CaptureStill takes the next frame and hands it to every writer.
func (c *Camera) CaptureStill(ctx context.Context) (*Still, error) {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, stillTimeout)
	defer cancel()

	frame, err := c.driver.Capture(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error capturing still")
	}

	still := NewStill(frame, c.Now())
	for _, w := range c.Writers {
		if err := w.Write(still); err != nil {
			return still, errors.Wrapf(err, "error writing %s", still.Name)
		}
	}

	log.WithFields(log.Fields{"name": still.Name, "path": still.Path, "location": still.Location}).Info("still captured")
	return still, nil
}

// Close stops and releases the driver.
func (c *Camera) Close() error {
	c.restartMu.Lock()
	defer c.restartMu.Unlock()
	return c.driver.Close()
}
