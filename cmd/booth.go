package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/session"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var boothCmd = &cobra.Command{
	Use:   "booth",
	Short: "Run a headless photobooth session",
	Long: `Run one complete local session without the web UI: capture six photos
from the configured camera, compose the picked ones with a template and
write the result to disk.

Examples:
  # Capture, keep photos 1, 3 and 6 and apply the pink filter
  photobooth booth --pick 1,3,6 --filter pink

  # Use the card template and save a PNG into ./out
  photobooth booth --template card --png --out ./out`,
	Args: cobra.NoArgs,
	RunE: runBooth,
}

func init() {
	rootCmd.AddCommand(boothCmd)

	boothCmd.Flags().StringSlice("pick", []string{"1", "2", "3"}, "Photo numbers (1-6) placed into the three slots, in order")
	boothCmd.Flags().String("template", "", "Template name (defaults to PHOTOBOOTH_TEMPLATE or the catalog default)")
	boothCmd.Flags().String("filter", "", "Color filter: white, pink, black or yellow")
	boothCmd.Flags().String("out", ".", "Directory the composition is written to")
	boothCmd.Flags().Bool("png", false, "Write PNG instead of JPEG")
}

// parsePicks converts 1-based photo numbers into store indexes.
func parsePicks(values []string) ([]int, error) {
	if len(values) != constants.SlotCount {
		return nil, fmt.Errorf("pick exactly %d photos, got %d", constants.SlotCount, len(values))
	}
	picks := make([]int, len(values))
	seen := make(map[int]bool, len(values))
	for i, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > constants.MaxPhotos {
			return nil, fmt.Errorf("invalid photo number %q: want 1-%d", v, constants.MaxPhotos)
		}
		if seen[n] {
			return nil, fmt.Errorf("photo %d picked twice", n)
		}
		seen[n] = true
		picks[i] = n - 1
	}
	return picks, nil
}

func runBooth(cmd *cobra.Command, args []string) error {
	picks, err := parsePicks(mustGetStringSlice(cmd, "pick"))
	if err != nil {
		return err
	}
	outDir := mustGetString(cmd, "out")
	format := "jpg"
	if mustGetBool(cmd, "png") {
		format = "png"
	}

	cfg := config.Load()
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	templateName := mustGetString(cmd, "template")
	if templateName == "" {
		templateName = cfg.Session.Template
	}
	tmpl, err := catalog.Get(templateName)
	if err != nil {
		return err
	}

	source, err := newCameraSource(cfg.Camera)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	booth := session.New(session.Options{
		Variant:  config.VariantLocal,
		Source:   source,
		Template: tmpl,
		IDs:      photoIDs(cfg.Session),
	})
	defer func() { _ = booth.Close() }()

	if err := booth.Start(ctx); err != nil {
		return fmt.Errorf("acquiring camera: %w", err)
	}

	if err := captureAll(ctx, booth); err != nil {
		return err
	}

	photos := booth.Photos()
	for _, i := range picks {
		if _, err := booth.Toggle(photos[i].ID); err != nil {
			return err
		}
	}

	fmt.Printf("Composing photos %v with template %s...\n", mustGetStringSlice(cmd, "pick"), tmpl.Name)
	if _, err := booth.Confirm(ctx); err != nil {
		return fmt.Errorf("composing: %w", err)
	}
	if name := mustGetString(cmd, "filter"); name != "" {
		if _, err := booth.ApplyFilter(name); err != nil {
			return err
		}
	}

	dl, err := booth.Download(format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	path := filepath.Join(outDir, dl.Name)
	if err := os.WriteFile(path, dl.Data, 0o644); err != nil { //nolint:gosec // output is meant to be shared
		return fmt.Errorf("writing composition: %w", err)
	}

	fmt.Printf("Saved %s (%d bytes)\n", path, len(dl.Data))
	return nil
}

// captureAll runs countdowns until the session moves on to selection.
func captureAll(ctx context.Context, booth *session.Controller) error {
	events := booth.AddListener()
	defer booth.RemoveListener(events)

	bar := progressbar.NewOptions(constants.MaxPhotos,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	defer func() { _ = bar.Finish() }()

	for {
		if booth.State().Step != session.StepCapturing {
			return nil
		}
		if booth.State().PhotosCount < constants.MaxPhotos {
			if _, err := booth.StartCountdown(ctx); err != nil {
				return fmt.Errorf("starting countdown: %w", err)
			}
		}

	wait:
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case event := <-events:
				switch event.Type {
				case session.EventPhoto:
					_ = bar.Add(1)
				case session.EventSelecting:
					return nil
				case session.EventCountdown:
					if st, ok := event.Data.(session.State); ok && !st.IsCapturing {
						break wait
					}
				}
			}
		}
	}
}
