package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HudsonReynolds2/cameraStreamer/mjpeg"
	"github.com/HudsonReynolds2/cameraStreamer/video"
	gomjpeg "github.com/mattn/go-mjpeg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCamera struct {
	mu       sync.Mutex
	settings video.Settings
	frames   [][]byte
	next     int
	err      error
	still    *video.Still
	calls    []string
}

func newFakeCamera() *fakeCamera {
	res, _ := video.LookupResolution("1080p")
	return &fakeCamera{
		settings: video.Settings{Resolution: res, FrameRate: 60, Focus: video.FocusContinuous, LensPosition: 5, Quality: 90},
		frames:   [][]byte{[]byte("frame-a"), []byte("frame-b")},
	}
}

func (c *fakeCamera) record(call string) {
	c.calls = append(c.calls, call)
}

func (c *fakeCamera) DriverName() string { return "fake" }

func (c *fakeCamera) Settings() video.Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

func (c *fakeCamera) Frame(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	f := c.frames[c.next%len(c.frames)]
	c.next++
	return f, nil
}

func (c *fakeCamera) UpdateSettings(resolution string, frameRate int) (video.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("update")
	if c.err != nil {
		return c.settings, c.err
	}
	c.settings.Resolution, _ = video.LookupResolution(resolution)
	c.settings.FrameRate = frameRate
	return c.settings, nil
}

func (c *fakeCamera) Rotate() (video.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("rotate")
	c.settings.Rotation = video.NextRotation(c.settings.Rotation)
	return c.settings, nil
}

func (c *fakeCamera) SetFocusMode(mode video.FocusMode) (video.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("focus_mode")
	c.settings.Focus = mode
	return c.settings, nil
}

func (c *fakeCamera) SetLensPosition(pos float64) (video.Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("lens")
	c.settings.LensPosition = pos
	return c.settings, nil
}

func (c *fakeCamera) CaptureStill(ctx context.Context) (*video.Still, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.still, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func jsonBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestIndexPlain(t *testing.T) {
	h := NewHandler(newFakeCamera(), Options{})
	rec := do(t, h, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Live Camera</h1>")
	assert.Contains(t, rec.Body.String(), `<img src="/video_feed">`)
	assert.NotContains(t, rec.Body.String(), "update_settings")
}

func TestIndexPanelPreselectsCurrentValues(t *testing.T) {
	cam := newFakeCamera()
	cam.settings.Focus = video.FocusManual
	cam.settings.LensPosition = 2.5

	rec := do(t, NewHandler(cam, Options{Panel: true}), http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `<option value="1080p" selected>1080p (1920x1080)</option>`)
	assert.Contains(t, body, `<option value="720p">720p (1280x720)</option>`)
	assert.Contains(t, body, `<option value="60" selected>60 FPS</option>`)
	assert.Contains(t, body, `<option value="manual" selected>Manual Focus</option>`)
	assert.Contains(t, body, `value="2.5"`)
	assert.Contains(t, body, `<span id="currentRes">1920x1080</span>`)
}

func TestPanelRoutesOnlyWithPanel(t *testing.T) {
	h := NewHandler(newFakeCamera(), Options{})
	for _, path := range []string{"/update_settings", "/rotate", "/set_focus_mode", "/set_focus", "/capture"} {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodPost, path, "{}").Code, path)
	}
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/status", "").Code)
}

func TestUpdateSettings(t *testing.T) {
	cam := newFakeCamera()
	h := NewHandler(cam, Options{Panel: true})

	rec := do(t, h, http.MethodPost, "/update_settings", `{"resolution":"720p","framerate":24}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"resolution": "1280x720", "framerate": 24.0}, jsonBody(t, rec))

	rec = do(t, h, http.MethodPost, "/update_settings", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"resolution": "1920x1080", "framerate": 30.0}, jsonBody(t, rec))
}

func TestUpdateSettingsRejectsInvalid(t *testing.T) {
	cam := newFakeCamera()
	h := NewHandler(cam, Options{Panel: true})

	for name, body := range map[string]string{
		"resolution": `{"resolution":"8K"}`,
		"framerate":  `{"framerate":0}`,
		"json":       `{"resolution":`,
		"type":       `{"framerate":"fast"}`,
	} {
		rec := do(t, h, http.MethodPost, "/update_settings", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		assert.Contains(t, jsonBody(t, rec), "error", name)
	}
	assert.Empty(t, cam.calls)
}

func TestUpdateSettingsRestartFailure(t *testing.T) {
	cam := newFakeCamera()
	cam.err = errors.New("device busy")

	rec := do(t, NewHandler(cam, Options{Panel: true}), http.MethodPost, "/update_settings", `{"resolution":"4K"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "device busy", jsonBody(t, rec)["error"])
}

func TestRotate(t *testing.T) {
	h := NewHandler(newFakeCamera(), Options{Panel: true})
	for _, want := range []float64{90, 180, 270, 0} {
		rec := do(t, h, http.MethodPost, "/rotate", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, want, jsonBody(t, rec)["rotation"])
	}
}

func TestSetFocusMode(t *testing.T) {
	cam := newFakeCamera()
	h := NewHandler(cam, Options{Panel: true})

	rec := do(t, h, http.MethodPost, "/set_focus_mode", `{"mode":"manual"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"mode": "manual", "message": "Manual focus enabled"}, jsonBody(t, rec))

	rec = do(t, h, http.MethodPost, "/set_focus_mode", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"mode": "continuous", "message": "Auto focus enabled"}, jsonBody(t, rec))

	rec = do(t, h, http.MethodPost, "/set_focus_mode", `{"mode":"fixed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetFocus(t *testing.T) {
	cam := newFakeCamera()
	h := NewHandler(cam, Options{Panel: true})

	rec := do(t, h, http.MethodPost, "/set_focus", `{"focus":7.3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7.3, jsonBody(t, rec)["focus"])

	rec = do(t, h, http.MethodPost, "/set_focus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5.0, jsonBody(t, rec)["focus"])

	rec = do(t, h, http.MethodPost, "/set_focus", `{"focus":12}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 5.0, cam.Settings().LensPosition)
}

func TestCapture(t *testing.T) {
	cam := newFakeCamera()
	cam.still = &video.Still{Name: "capture_20240102_030405.jpg", Path: "/tmp/captures/capture_20240102_030405.jpg"}
	h := NewHandler(cam, Options{Panel: true})

	rec := do(t, h, http.MethodPost, "/capture", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{
		"success":  true,
		"filename": "capture_20240102_030405.jpg",
		"path":     "/tmp/captures/capture_20240102_030405.jpg",
	}, jsonBody(t, rec))

	cam.err = errors.New("camera stopped")
	rec = do(t, h, http.MethodPost, "/capture", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "camera stopped"}, jsonBody(t, rec))
}

func TestStatus(t *testing.T) {
	started := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	h := NewHandler(newFakeCamera(), Options{Panel: true, CaptureDir: t.TempDir(), Started: started})

	rec := do(t, h, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "fake", status.Driver)
	assert.Equal(t, "1080p", status.Settings.Resolution.Name)
	assert.Len(t, status.Resolutions, 5)
	assert.Equal(t, started.UnixMilli(), status.ServerStartTimeMillis)
	require.NotNil(t, status.Disk)
	assert.NotZero(t, status.Disk.Total)
}

func TestSnapshot(t *testing.T) {
	cam := newFakeCamera()
	h := NewHandler(cam, Options{})

	rec := do(t, h, http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "frame-a", rec.Body.String())

	cam.err = errors.New("stopped")
	rec = do(t, h, http.MethodGet, "/snapshot", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamSkipsDuplicateFrames(t *testing.T) {
	cam := newFakeCamera()
	cam.frames = [][]byte{[]byte("frame-a"), []byte("frame-a"), []byte("frame-b"), []byte("frame-c")}
	srv := httptest.NewServer(NewHandler(cam, Options{}))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/video_feed")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, mjpeg.ContentType, resp.Header.Get("Content-Type"))

	dec, err := gomjpeg.NewDecoderFromResponse(resp)
	require.NoError(t, err)

	var got [][]byte
	for i := 0; i < 3; i++ {
		frame, err := dec.DecodeRaw()
		require.NoError(t, err)
		got = append(got, frame)
	}
	assert.Equal(t, [][]byte{[]byte("frame-a"), []byte("frame-b"), []byte("frame-c")}, got)
}

func TestStreamRetriesOnFrameErrors(t *testing.T) {
	cam := newFakeCamera()
	cam.err = errors.New("warming up")

	sh := NewStreamHandler(cam)
	sh.RetryDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	r := httptest.NewRequest(http.MethodGet, "/video_feed", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		sh.ServeHTTP(rec, r)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cam.mu.Lock()
	cam.err = nil
	cam.mu.Unlock()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream did not end with the client")
	}
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("--frame\r\n")))
}
