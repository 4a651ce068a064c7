package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/feed"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/kozaktomas/photobooth/internal/session"
	"github.com/kozaktomas/photobooth/internal/video"
	"github.com/kozaktomas/photobooth/internal/web"
	"github.com/kozaktomas/photobooth/internal/web/handlers"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Photobooth web server.
The server exposes the live view, the capture countdown, photo selection,
composition, filters and downloads over a JSON API with server-sent events.

In the local variant frames come from CAMERA_SNAPSHOT_URL or CAMERA_DIR.
In the assisted variant (PHOTOBOOTH_VARIANT=assisted) the AI backend at
AI_BACKEND_URL streams frames and captured photos over its websocket feed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (defaults to WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (defaults to WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort prefers flags over the environment configuration.
func resolveServeHostPort(cmd *cobra.Command, cfg *config.Config) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	if port == 0 {
		port = cfg.Web.Port
	}
	if host == "" {
		host = cfg.Web.Host
	}
	return port, host
}

// loadCatalog builds the template catalog, merging the operator's templates file.
func loadCatalog(cfg *config.Config) (*compose.Catalog, error) {
	if cfg.Session.TemplatesFile != "" {
		if err := cfg.Templates.MergeFile(cfg.Session.TemplatesFile); err != nil {
			return nil, err
		}
	}
	catalog, err := compose.NewCatalog(cfg.Templates)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return catalog, nil
}

// newCameraSource picks the local camera device from the configuration.
func newCameraSource(cfg config.CameraConfig) (*video.LocalSource, error) {
	var device video.Device
	switch {
	case cfg.SnapshotURL != "":
		device = video.NewSnapshotDevice(cfg.SnapshotURL, 5*time.Second)
	case cfg.Dir != "":
		device = video.NewDirDevice(cfg.Dir)
	default:
		return nil, errors.New("CAMERA_SNAPSHOT_URL or CAMERA_DIR environment variable is required")
	}
	return video.NewLocalSource(device, cfg.FPS), nil
}

// photoIDs returns the photo id generator selected by PHOTOBOOTH_PHOTO_IDS.
func photoIDs(cfg config.SessionConfig) photo.IDGenerator {
	if cfg.PhotoIDs == "uuid" {
		return photo.RandomIDs{}
	}
	return photo.NewSequence("photo-")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	port, host := resolveServeHostPort(cmd, cfg)

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	tmpl, err := catalog.Get(cfg.Session.Template)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := session.Options{
		Variant:  cfg.Session.Variant,
		Template: tmpl,
		IDs:      photoIDs(cfg.Session),
	}
	var control *feed.Control
	if cfg.Session.IsAssisted() {
		control = feed.NewControl(cfg.Backend.URL, nil)
		opts.Source = video.NewRemoteSource()
		opts.Backend = control
	} else {
		source, err := newCameraSource(cfg.Camera)
		if err != nil {
			return err
		}
		opts.Source = source
	}

	booth := session.New(opts)
	defer func() { _ = booth.Close() }()

	var monitor handlers.FeedMonitor
	if cfg.Session.IsAssisted() {
		if st, err := control.Status(ctx); err != nil {
			slog.Warn("AI backend status unavailable, waiting for feed", "error", err)
		} else {
			booth.ApplyBackendStatus(st)
		}

		client := feed.NewClient(cfg.Backend.WebsocketURL(), booth.ApplyFeedStatus)
		monitor = client
		go func() {
			if err := client.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("gesture feed stopped", "error", err)
			}
		}()
		fmt.Printf("Following AI backend feed at %s\n", cfg.Backend.WebsocketURL())
	}

	if err := booth.Start(ctx); err != nil {
		// Not fatal, the next countdown retries the camera.
		slog.Warn("video source unavailable", "error", err)
	}

	server := web.NewServer(cfg, port, host, booth, catalog, monitor)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Photobooth (%s, template %s) on http://%s:%d\n", cfg.Session.Variant, tmpl.Name, host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
