package video

import (
	"context"
	"sort"
	"strings"

	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/pkg/errors"
)

var (
	// ErrStopped is returned by Capture while the driver is not running.
	ErrStopped = errors.New("capture stopped")

	// ErrRunning is returned by Configure while the driver is running.
	ErrRunning = errors.New("driver is running")
)

// Driver is the capture handle: the single open connection to the camera.
type Driver interface {
	Name() string

	// Configure stores settings for the next Start.
	Configure(s Settings) error

	Start() error
	Stop() error

	// Capture blocks until the next JPEG frame is available.
	Capture(ctx context.Context) ([]byte, error)

	// SetFocus changes the focus mode and lens position of a running driver.
	SetFocus(mode FocusMode, lensPosition float64) error

	Close() error
}

// Factory builds a driver from the camera configuration.
type Factory func(cfg config.CameraConfig) (Driver, error)

var factories = map[string]Factory{}

// RegisterDriver registers a driver factory under a name.
// Note that only one factory can be registered for any single name.
func RegisterDriver(name string, f Factory) {
	factories[name] = f
}

// Drivers returns the registered driver names.
func Drivers() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewDriver builds the driver named in cfg.
func NewDriver(cfg config.CameraConfig) (Driver, error) {
	f, ok := factories[cfg.Driver]
	if !ok {
		return nil, errors.Errorf("no driver %q in this build (available: %s)", cfg.Driver, strings.Join(Drivers(), ", "))
	}
	d, err := f(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating %s driver", cfg.Driver)
	}
	return d, nil
}
