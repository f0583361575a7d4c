package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), "camstream.yaml")
	require.NoError(t, os.WriteFile(fn, []byte(body), 0o644))
	return fn
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	fn := writeConfig(t, `
listen: ":8080"
panel: true
warmUp: 500ms
camera:
  driver: libcamera
  resolution: 720p
  frameRate: 15
  rotation: 180
aws:
  s3bucket: stills
  region: eu-west-1
`)

	cfg, err := ParseConfig(fn)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Listen)
	assert.True(t, cfg.Panel)
	assert.Equal(t, 500*time.Millisecond, cfg.WarmUp)
	assert.Equal(t, time.Second, cfg.SettleDelay)
	assert.Equal(t, "libcamera", cfg.Camera.Driver)
	assert.Equal(t, "720p", cfg.Camera.Resolution)
	assert.Equal(t, 15, cfg.Camera.FrameRate)
	assert.Equal(t, 180, cfg.Camera.Rotation)
	assert.Equal(t, "rpicam-vid", cfg.Camera.Command)
	assert.Equal(t, "continuous", cfg.Camera.FocusMode)
	assert.Equal(t, 90, cfg.Camera.Quality)
	assert.Equal(t, "stills", cfg.AWS.S3Bucket)
	assert.False(t, cfg.AWS.Ready())
}

func TestParseConfigMissingFile(t *testing.T) {
	_, err := ParseConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParseConfigRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"rotation":  "camera:\n  rotation: 45\n",
		"framerate": "camera:\n  frameRate: 0\n",
		"focus":     "camera:\n  focusMode: macro\n",
		"lens":      "camera:\n  lensPosition: 12\n",
		"quality":   "camera:\n  quality: 101\n",
		"listen":    "listen: \"\"\n",
		"syntax":    "camera: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestAWSReady(t *testing.T) {
	a := AWSConfig{S3Bucket: "b", Region: "r", AccessKey: "k", SecretAccessKey: "s"}
	assert.True(t, a.Ready())

	a.SecretAccessKey = ""
	assert.False(t, a.Ready())
}
