package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/photobooth/internal/compose"
	"github.com/kozaktomas/photobooth/internal/config"
	"github.com/kozaktomas/photobooth/internal/constants"
	"github.com/kozaktomas/photobooth/internal/filter"
	"github.com/kozaktomas/photobooth/internal/photo"
	"github.com/spf13/cobra"
)

var composeCmd = &cobra.Command{
	Use:   "compose <photo> <photo> <photo>",
	Short: "Compose three image files into a photobooth strip",
	Long: `Compose three existing images with a layout template, exactly as the
booth does after selection. Slots are filled in argument order.

Examples:
  photobooth compose a.jpg b.jpg c.jpg
  photobooth compose a.jpg b.jpg c.jpg --template card --filter yellow --out strip.png`,
	Args: cobra.ExactArgs(constants.SlotCount),
	RunE: runCompose,
}

func init() {
	rootCmd.AddCommand(composeCmd)

	composeCmd.Flags().String("template", "", "Template name (defaults to PHOTOBOOTH_TEMPLATE or the catalog default)")
	composeCmd.Flags().String("filter", "", "Color filter: white, pink, black or yellow")
	composeCmd.Flags().String("out", "", "Output file; the extension picks the format (defaults to photobooth-<id>.jpg)")
	composeCmd.Flags().Bool("png", false, "Write PNG when --out is not given")
}

func runCompose(cmd *cobra.Command, args []string) error {
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
	filterID, err := filter.Parse(mustGetString(cmd, "filter"))
	if err != nil {
		return err
	}

	photos := make([]photo.Photo, len(args))
	for i, path := range args {
		data, err := os.ReadFile(path) //nolint:gosec // user-provided input files
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		photos[i] = photo.New(filepath.Base(path), data, info.ModTime())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := compose.NewCompositor().Compose(ctx, photos, tmpl)
	if err != nil {
		return err
	}

	out := mustGetString(cmd, "out")
	if out == "" {
		ext := "jpg"
		if mustGetBool(cmd, "png") {
			ext = "png"
		}
		out = res.FileName(ext)
	}

	data, err := encodeComposition(res, filterID, filepath.Ext(out))
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // output is meant to be shared
		return fmt.Errorf("writing composition: %w", err)
	}

	fmt.Printf("Composed %dx%d %s strip with filter %s: %s\n", res.Width, res.Height, tmpl.Name, filterID, out)
	return nil
}

// encodeComposition applies the filter and encodes for the output extension.
func encodeComposition(res *compose.Result, id filter.ID, ext string) ([]byte, error) {
	if ext != ".png" && ext != ".jpg" && ext != ".jpeg" {
		return nil, fmt.Errorf("unsupported output extension %q", ext)
	}

	img := res.Image
	if id != filter.None {
		filtered, err := filter.Apply(res.Image, id)
		if err != nil {
			return nil, err
		}
		img = filtered
	}

	switch {
	case ext == ".png":
		return photo.EncodePNG(img)
	case id == filter.None:
		return res.Encoded, nil
	default:
		return photo.EncodeJPEG(img, constants.JPEGQuality)
	}
}
