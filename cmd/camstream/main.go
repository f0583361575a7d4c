package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/HudsonReynolds2/cameraStreamer/cloud"
	"github.com/HudsonReynolds2/cameraStreamer/cloud/aws"
	"github.com/HudsonReynolds2/cameraStreamer/config"
	ghttp "github.com/HudsonReynolds2/cameraStreamer/http"
	"github.com/HudsonReynolds2/cameraStreamer/video"
	rconfig "github.com/Luzifer/rconfig/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type flags struct {
	Config         string `flag:"config,c" default:"" description:"YAML configuration file"`
	Listen         string `flag:"listen" default:"" description:"Address to listen on, overrides the config file"`
	Driver         string `flag:"driver" default:"" description:"Camera driver, overrides the config file"`
	Device         string `flag:"device" default:"" description:"Camera device, index or upstream URL, overrides the config file"`
	Panel          bool   `flag:"panel" default:"false" description:"Serve the control panel"`
	LogLevel       string `flag:"log-level" default:"info" description:"Log level (debug, info, warn, error, fatal)"`
	VersionAndExit bool   `flag:"version" default:"false" description:"Prints current version and exits"`
}

var version = "dev"

const (
	shutdownTimeout = 5 * time.Second

	// any routable address; localIP never sends to it
	outboundAddr = "8.8.8.8:80"
)

// parseFlags reads the command line and applies the log level.
func parseFlags() flags {
	var cfg flags
	if err := rconfig.ParseAndValidate(&cfg); err != nil {
		log.Fatalf("Unable to parse commandline options: %s", err)
	}

	if cfg.VersionAndExit {
		fmt.Printf("camstream %s\n", version)
		os.Exit(0)
	}

	if l, err := log.ParseLevel(cfg.LogLevel); err != nil {
		log.WithError(err).Fatal("Unable to parse log level")
	} else {
		log.SetLevel(l)
	}
	return cfg
}

// loadConfig reads the config file, if any, and applies the flags on top.
func loadConfig(cfg flags) (*config.Config, error) {
	c := config.Default()
	if cfg.Config != "" {
		parsed, err := config.ParseConfig(cfg.Config)
		if err != nil {
			return nil, err
		}
		c = parsed
	}

	if cfg.Listen != "" {
		c.Listen = cfg.Listen
	}
	if cfg.Driver != "" {
		c.Camera.Driver = cfg.Driver
	}
	if cfg.Device != "" {
		c.Camera.Device = cfg.Device
	}
	if cfg.Panel {
		c.Panel = true
	}

	return c, errors.Wrap(c.Validate(), "invalid configuration")
}

func stillWriters(c *config.Config) ([]video.StillWriter, error) {
	if err := os.MkdirAll(c.CaptureDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "error creating %s", c.CaptureDir)
	}
	writers := []video.StillWriter{video.NewLocalWriter(c.CaptureDir)}

	if c.AWS.Ready() {
		u, err := cloud.NewUploader(cloud.AWSConfig(c.AWS))
		if err != nil {
			return nil, err
		}
		writers = append(writers, video.NewS3Writer(aws.NewS3Storage(u, c.AWS), c.AWS.Prefix))
		log.WithField("bucket", c.AWS.S3Bucket).Info("stills are copied to S3")
	}
	return writers, nil
}

// localIP finds the address of the interface used for outbound traffic.
// No packet is sent.
func localIP(target string) string {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return "localhost"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func listenPort(listen string) string {
	if _, p, err := net.SplitHostPort(listen); err == nil && p != "" {
		return p
	}
	return "5000"
}

func banner(listen string) {
	port := listenPort(listen)
	ip := localIP(outboundAddr)

	log.Infof("Local access: http://localhost:%s", port)
	log.Infof("Network access: http://%s:%s", ip, port)
	log.Infof("For WSL2, try: http://%s:%s/video_feed", ip, port)
	log.Infof("Make sure the firewall allows port %s", port)
}

func main() {
	c, err := loadConfig(parseFlags())
	if err != nil {
		log.WithError(err).Fatal("Unable to load configuration")
	}

	settings, err := video.SettingsFromConfig(c.Camera)
	if err != nil {
		log.WithError(err).Fatal("Invalid camera settings")
	}

	driver, err := video.NewDriver(c.Camera)
	if err != nil {
		log.WithError(err).WithField("drivers", strings.Join(video.Drivers(), ",")).Fatal("Unable to open camera driver")
	}

	cam := video.NewCamera(driver, settings)
	cam.SettleDelay = c.SettleDelay
	if cam.Writers, err = stillWriters(c); err != nil {
		log.WithError(err).Fatal("Unable to set up still capture")
	}

	log.WithField("driver", driver.Name()).Info("Starting camera")
	if err := cam.Start(c.WarmUp); err != nil {
		log.WithError(err).Fatal("Unable to start camera")
	}

	// streams only end with their request context
	baseCtx, stopStreams := context.WithCancel(context.Background())
	defer stopStreams()

	handler := ghttp.NewHandler(cam, ghttp.Options{
		Panel:      c.Panel,
		CaptureDir: c.CaptureDir,
		Started:    time.Now(),
	})
	srv := &http.Server{
		Addr:        c.Listen,
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server has gone")
		}
	}()
	banner(c.Listen)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	sig := <-sigs
	log.WithField("signal", sig.String()).Info("Shutting down")

	stopStreams()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Error shutting down HTTP server")
	}
	if err := cam.Close(); err != nil {
		log.WithError(err).Warn("Error releasing camera")
	}
}
