package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type Config struct {
	// Address the HTTP server listens on
	Listen string `yaml:"listen"`

	// Serve the control panel and its JSON endpoints
	Panel bool `yaml:"panel"`

	// Directory still captures are written to
	CaptureDir string `yaml:"captureDir"`

	// Delay after the first start before serving frames
	WarmUp time.Duration `yaml:"warmUp"`

	// Delay after every stop/configure/start cycle
	SettleDelay time.Duration `yaml:"settleDelay"`

	// Camera configuration
	Camera CameraConfig `yaml:"camera"`

	// AWS configuration, used to copy stills to S3
	AWS AWSConfig `yaml:"aws"`
}

type CameraConfig struct {
	// Driver name: v4l2, libcamera, opencv, mjpeg or test
	Driver string `yaml:"driver"`

	// Device path, device index or upstream URL depending on the driver
	Device string `yaml:"device"`

	// Executable used by the libcamera driver
	Command string `yaml:"command"`

	// Initial resolution preset (480p, 720p, 1080p, 2K, 4K)
	Resolution string `yaml:"resolution"`

	// Initial frame rate
	FrameRate int `yaml:"frameRate"`

	// Initial rotation in degrees
	Rotation int `yaml:"rotation"`

	// Initial focus mode: continuous or manual
	FocusMode string `yaml:"focusMode"`

	// Initial lens position, 0 (infinity) to 10 (close)
	LensPosition float64 `yaml:"lensPosition"`

	// JPEG quality for frames encoded by the service
	Quality int `yaml:"quality"`
}

type AWSConfig struct {
	// S3 bucket for storage
	S3Bucket string `yaml:"s3bucket"`

	// Key prefix inside the bucket
	Prefix string `yaml:"prefix"`

	// AWS Region
	Region string `yaml:"region"`

	// AWS creds
	AccessKey       string `yaml:"accessKey"`
	SecretAccessKey string `yaml:"secretAccessKey"`
}

func (a *AWSConfig) Ready() bool {
	if a.S3Bucket == "" {
		return false
	}

	if a.Region == "" {
		return false
	}

	if a.AccessKey == "" {
		return false
	}

	if a.SecretAccessKey == "" {
		return false
	}

	return true
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:      "0.0.0.0:5000",
		CaptureDir:  "./captures",
		WarmUp:      2 * time.Second,
		SettleDelay: time.Second,
		Camera: CameraConfig{
			Driver:     "v4l2",
			Device:     "/dev/video0",
			Command:    "rpicam-vid",
			Resolution: "1080p",
			FrameRate:  30,
			FocusMode:  "continuous",
			Quality:    90,
		},
	}
}

// Validate checks the values that do not depend on a camera driver.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address is empty")
	}
	if c.CaptureDir == "" {
		return errors.New("capture directory is empty")
	}
	if c.WarmUp < 0 || c.SettleDelay < 0 {
		return errors.New("delays must not be negative")
	}

	cam := c.Camera
	if cam.Driver == "" {
		return errors.New("camera driver is empty")
	}
	if cam.FrameRate < 1 || cam.FrameRate > 120 {
		return errors.Errorf("frame rate %d out of range 1..120", cam.FrameRate)
	}
	switch cam.Rotation {
	case 0, 90, 180, 270:
	default:
		return errors.Errorf("rotation %d is not one of 0, 90, 180, 270", cam.Rotation)
	}
	if cam.FocusMode != "continuous" && cam.FocusMode != "manual" {
		return errors.Errorf("unknown focus mode %q", cam.FocusMode)
	}
	if cam.LensPosition < 0 || cam.LensPosition > 10 {
		return errors.Errorf("lens position %.1f out of range 0..10", cam.LensPosition)
	}
	if cam.Quality < 1 || cam.Quality > 100 {
		return errors.Errorf("jpeg quality %d out of range 1..100", cam.Quality)
	}

	return nil
}

// ParseConfig reads fn on top of the defaults and validates the result.
func ParseConfig(fn string) (*Config, error) {
	bytes, err := os.ReadFile(fn)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading %s", fn)
	}

	cc := Default()

	err = yaml.Unmarshal(bytes, cc)
	if err != nil {
		return nil, errors.Wrap(err, "error deserializing configuration")
	}

	if err := cc.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in %s", fn)
	}

	return cc, nil

}
