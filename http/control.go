package http

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/HudsonReynolds2/cameraStreamer/disk"
	"github.com/HudsonReynolds2/cameraStreamer/video"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultResolution   = "1080p"
	defaultFrameRate    = 30
	defaultFocusMode    = video.FocusContinuous
	defaultLensPosition = 5.0
)

// ControlHandler serves the JSON endpoints behind the control panel.
type ControlHandler struct {
	cam        Camera
	captureDir string
	started    time.Time
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return errors.Wrap(err, "invalid request body")
}

type settingsRequest struct {
	Resolution *string `json:"resolution"`
	FrameRate  *int    `json:"framerate"`
}

func (ch *ControlHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	res, fps := defaultResolution, defaultFrameRate
	if req.Resolution != nil {
		res = *req.Resolution
	}
	if req.FrameRate != nil {
		fps = *req.FrameRate
	}

	if _, ok := video.LookupResolution(res); !ok {
		respondError(w, http.StatusBadRequest, errors.Errorf("unknown resolution %q", res))
		return
	}
	if fps < video.MinFrameRate || fps > video.MaxFrameRate {
		respondError(w, http.StatusBadRequest, errors.Errorf("frame rate %d out of range %d..%d", fps, video.MinFrameRate, video.MaxFrameRate))
		return
	}

	s, err := ch.cam.UpdateSettings(res, fps)
	if err != nil {
		log.WithError(err).Error("error updating settings")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resolution": s.Resolution.String(),
		"framerate":  s.FrameRate,
	})
}

func (ch *ControlHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	s, err := ch.cam.Rotate()
	if err != nil {
		log.WithError(err).Error("error rotating camera")
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"rotation": s.Rotation})
}

type focusModeRequest struct {
	Mode *string `json:"mode"`
}

func (ch *ControlHandler) SetFocusMode(w http.ResponseWriter, r *http.Request) {
	var req focusModeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	mode := defaultFocusMode
	if req.Mode != nil {
		m, err := video.ParseFocusMode(*req.Mode)
		if err != nil {
			respondError(w, http.StatusBadRequest, err)
			return
		}
		mode = m
	}

	s, err := ch.cam.SetFocusMode(mode)
	if err != nil {
		log.WithError(err).Error("error changing focus mode")
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	message := "Auto focus enabled"
	if s.Focus == video.FocusManual {
		message = "Manual focus enabled"
	}
	respondJSON(w, http.StatusOK, map[string]string{"mode": string(s.Focus), "message": message})
}

type focusRequest struct {
	Focus *float64 `json:"focus"`
}

func (ch *ControlHandler) SetFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	pos := defaultLensPosition
	if req.Focus != nil {
		pos = *req.Focus
	}
	if pos < video.MinLensPosition || pos > video.MaxLensPosition {
		respondError(w, http.StatusBadRequest, errors.Errorf("focus %.1f out of range %.0f..%.0f", pos, video.MinLensPosition, video.MaxLensPosition))
		return
	}

	s, err := ch.cam.SetLensPosition(pos)
	if err != nil {
		log.WithError(err).Error("error setting focus")
		respondError(w, http.StatusInternalServerError, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]float64{"focus": s.LensPosition})
}

type captureResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (ch *ControlHandler) Capture(w http.ResponseWriter, r *http.Request) {
	still, err := ch.cam.CaptureStill(r.Context())
	if err != nil {
		log.WithError(err).Error("error capturing still")
		respondJSON(w, http.StatusInternalServerError, captureResponse{Error: err.Error()})
		return
	}

	respondJSON(w, http.StatusOK, captureResponse{
		Success:  true,
		Filename: still.Name,
		Path:     still.Path,
		Location: still.Location,
	})
}

type statusResponse struct {
	Driver      string             `json:"driver"`
	Settings    video.Settings     `json:"settings"`
	Resolutions []video.Resolution `json:"resolutions"`
	FrameRates  []int              `json:"framerates"`
	CaptureDir  string             `json:"captureDir"`
	Disk        *disk.Report       `json:"disk,omitempty"`

	ServerStartTimeMillis int64 `json:"serverStartTimeMillis"`
}

func (ch *ControlHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Driver:                ch.cam.DriverName(),
		Settings:              ch.cam.Settings(),
		Resolutions:           video.Resolutions,
		FrameRates:            video.FrameRates,
		CaptureDir:            ch.captureDir,
		ServerStartTimeMillis: ch.started.UnixMilli(),
	}

	if u, err := disk.Get(ch.captureDir); err != nil {
		log.WithError(err).Debug("error reading disk usage")
	} else {
		report := u.Report()
		resp.Disk = &report
	}

	respondJSON(w, http.StatusOK, resp)
}
