package http

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/HudsonReynolds2/cameraStreamer/video"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

func NewDashHandler(cam Camera, panel bool) *DashHandler {
	return &DashHandler{cam: cam, panel: panel}
}

// DashHandler serves the viewer page, or the control panel when enabled.
type DashHandler struct {
	cam   Camera
	panel bool
}

type dashView struct {
	Settings    video.Settings
	Resolutions []video.Resolution
	FrameRates  []int
	Manual      bool
}

func (dh *DashHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := "index.html"
	if dh.panel {
		name = "panel.html"
	}

	s := dh.cam.Settings()
	view := dashView{
		Settings:    s,
		Resolutions: video.Resolutions,
		FrameRates:  video.FrameRates,
		Manual:      s.Focus == video.FocusManual,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, view); err != nil {
		log.WithError(err).Error("error rendering page")
	}
}
