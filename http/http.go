package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/HudsonReynolds2/cameraStreamer/video"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

// Camera is the capture controller served over HTTP.
type Camera interface {
	DriverName() string
	Settings() video.Settings
	Frame(ctx context.Context) ([]byte, error)
	UpdateSettings(resolution string, frameRate int) (video.Settings, error)
	Rotate() (video.Settings, error)
	SetFocusMode(mode video.FocusMode) (video.Settings, error)
	SetLensPosition(pos float64) (video.Settings, error)
	CaptureStill(ctx context.Context) (*video.Still, error)
}

// Options select the routes served by NewHandler.
type Options struct {
	// Serve the control panel and its JSON endpoints
	Panel bool

	// Directory whose disk usage is reported on /status
	CaptureDir string

	// Reported on /status
	Started time.Time
}

// NewHandler routes the stream, snapshot and, with Options.Panel, the
// control endpoints to cam.
func NewHandler(cam Camera, opts Options) http.Handler {
	r := mux.NewRouter()
	r.Handle("/", NewDashHandler(cam, opts.Panel)).Methods(http.MethodGet)
	r.Handle("/video_feed", NewStreamHandler(cam)).Methods(http.MethodGet)
	r.Handle("/snapshot", NewCameraHandler(cam)).Methods(http.MethodGet)

	if opts.Panel {
		ctl := &ControlHandler{cam: cam, captureDir: opts.CaptureDir, started: opts.Started}
		r.HandleFunc("/update_settings", ctl.UpdateSettings).Methods(http.MethodPost)
		r.HandleFunc("/rotate", ctl.Rotate).Methods(http.MethodPost)
		r.HandleFunc("/set_focus_mode", ctl.SetFocusMode).Methods(http.MethodPost)
		r.HandleFunc("/set_focus", ctl.SetFocus).Methods(http.MethodPost)
		r.HandleFunc("/capture", ctl.Capture).Methods(http.MethodPost)
		r.HandleFunc("/status", ctl.Status).Methods(http.MethodGet)
	}

	return r
}

func NewCameraHandler(cam Camera) *CameraHandler {
	return &CameraHandler{cam}
}

// CameraHandler serves the next frame as a single JPEG.
type CameraHandler struct {
	cam Camera
}

func (ch *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	frame, err := ch.cam.Frame(ctx)
	if err != nil {
		log.WithError(err).Warn("error reading snapshot")
		http.Error(w, "camera unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(frame)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Debug("error writing response")
	}
}

func respondError(w http.ResponseWriter, status int, err error) {
	respondJSON(w, status, map[string]string{"error": err.Error()})
}
