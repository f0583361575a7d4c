package video

import (
	"fmt"
	"strings"

	"github.com/HudsonReynolds2/cameraStreamer/config"
	"github.com/pkg/errors"
)

// Resolution is a named capture size.
type Resolution struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Resolutions lists the presets offered by the control panel, smallest first.
var Resolutions = []Resolution{
	{"480p", 640, 480},
	{"720p", 1280, 720},
	{"1080p", 1920, 1080},
	{"2K", 2304, 1296},
	{"4K", 4608, 2592},
}

// FrameRates lists the frame rates offered by the control panel.
var FrameRates = []int{15, 24, 30, 60}

// LookupResolution finds a preset by name. Names are case-insensitive.
func LookupResolution(name string) (Resolution, bool) {
	for _, r := range Resolutions {
		if strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Resolution{}, false
}

type FocusMode string

const (
	FocusContinuous FocusMode = "continuous"
	FocusManual     FocusMode = "manual"
)

const (
	MinLensPosition = 0.0
	MaxLensPosition = 10.0

	MinFrameRate = 1
	MaxFrameRate = 120
)

func ParseFocusMode(s string) (FocusMode, error) {
	switch FocusMode(s) {
	case FocusContinuous, FocusManual:
		return FocusMode(s), nil
	}
	return "", errors.Errorf("unknown focus mode %q", s)
}

// Transform is the flip applied to frames for a rotation.
type Transform struct {
	HFlip bool
	VFlip bool
}

// Identity reports whether the transform leaves frames untouched.
func (t Transform) Identity() bool {
	return !t.HFlip && !t.VFlip
}

// TransformFor maps a rotation to the flip pair the camera applies.
// 90 flips vertically, 180 flips both ways, 270 flips horizontally.
func TransformFor(rotation int) Transform {
	switch rotation {
	case 90:
		return Transform{VFlip: true}
	case 180:
		return Transform{HFlip: true, VFlip: true}
	case 270:
		return Transform{HFlip: true}
	}
	return Transform{}
}

// NextRotation advances a rotation by a quarter turn.
func NextRotation(rotation int) int {
	return (rotation + 90) % 360
}

// Settings is the full camera configuration applied by a restart.
type Settings struct {
	Resolution   Resolution `json:"resolution"`
	FrameRate    int        `json:"framerate"`
	Rotation     int        `json:"rotation"`
	Focus        FocusMode  `json:"focus_mode"`
	LensPosition float64    `json:"lens_position"`
	Quality      int        `json:"quality"`
}

func (s Settings) Transform() Transform {
	return TransformFor(s.Rotation)
}

func (s Settings) Validate() error {
	if s.Resolution.Width <= 0 || s.Resolution.Height <= 0 {
		return errors.Errorf("invalid resolution %s", s.Resolution)
	}
	if s.FrameRate < MinFrameRate || s.FrameRate > MaxFrameRate {
		return errors.Errorf("frame rate %d out of range %d..%d", s.FrameRate, MinFrameRate, MaxFrameRate)
	}
	switch s.Rotation {
	case 0, 90, 180, 270:
	default:
		return errors.Errorf("rotation %d is not a quarter turn", s.Rotation)
	}
	if _, err := ParseFocusMode(string(s.Focus)); err != nil {
		return err
	}
	if s.LensPosition < MinLensPosition || s.LensPosition > MaxLensPosition {
		return errors.Errorf("lens position %.1f out of range %.0f..%.0f", s.LensPosition, MinLensPosition, MaxLensPosition)
	}
	if s.Quality < 1 || s.Quality > 100 {
		return errors.Errorf("jpeg quality %d out of range 1..100", s.Quality)
	}
	return nil
}

// SettingsFromConfig builds the initial settings from the camera config.
func SettingsFromConfig(cfg config.CameraConfig) (Settings, error) {
	res, ok := LookupResolution(cfg.Resolution)
	if !ok {
		return Settings{}, errors.Errorf("unknown resolution %q", cfg.Resolution)
	}
	s := Settings{
		Resolution:   res,
		FrameRate:    cfg.FrameRate,
		Rotation:     cfg.Rotation,
		Focus:        FocusMode(cfg.FocusMode),
		LensPosition: cfg.LensPosition,
		Quality:      cfg.Quality,
	}
	if err := s.Validate(); err != nil {
		return Settings{}, errors.Wrap(err, "invalid camera settings")
	}
	return s, nil
}
