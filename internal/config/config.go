package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/photobooth/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var templatesYAML []byte

// Session variants.
const (
	VariantLocal    = "local"
	VariantAssisted = "assisted"
)

type Config struct {
	Session   SessionConfig
	Camera    CameraConfig
	Backend   BackendConfig
	Web       WebConfig
	Log       LogConfig
	Templates TemplatesConfig
}

type SessionConfig struct {
	Variant  string // local (camera + countdown) or assisted (AI backend feed)
	Template string // template name from Templates, empty selects the default

	TemplatesFile string // optional YAML file merged over the embedded templates
	PhotoIDs      string // "sequence" (photo-1, photo-2, ...) or "uuid"
}

// IsAssisted reports whether the session is driven by the AI backend feed.
func (c *SessionConfig) IsAssisted() bool {
	return c.Variant == VariantAssisted
}

type CameraConfig struct {
	SnapshotURL string // HTTP endpoint returning the current camera frame as JPEG/PNG
	Dir         string // directory of images replayed as a camera (demo and kiosk testing)
	FPS         int    // live frame refresh rate, defaults to 10
}

type BackendConfig struct {
	URL string // AI backend base URL, e.g. http://localhost:8000
}

// WebsocketURL returns the gesture feed address derived from the backend URL.
func (c *BackendConfig) WebsocketURL() string {
	u := strings.TrimSuffix(c.URL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

type WebConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level string // debug, info, warn, error
}

type TemplatesConfig struct {
	Default   string                    `yaml:"default"`
	Templates map[string]TemplateConfig `yaml:"templates"`
}

// TemplateConfig describes one composition layout. Frame templates use Width,
// Height, Border and FrameColor (or FramePath), card templates use the photo
// box, padding, spacing and gradient fields.
type TemplateConfig struct {
	Kind           string `yaml:"kind"`
	FramePath      string `yaml:"frame_path"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	Border         int    `yaml:"border"`
	FrameColor     string `yaml:"frame_color"`
	PhotoWidth     int    `yaml:"photo_width"`
	PhotoHeight    int    `yaml:"photo_height"`
	Padding        int    `yaml:"padding"`
	Spacing        int    `yaml:"spacing"`
	CornerRadius   int    `yaml:"corner_radius"`
	GradientTop    string `yaml:"gradient_top"`
	GradientBottom string `yaml:"gradient_bottom"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envString reads an environment variable, falling back to defaultVal when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var templates TemplatesConfig
	if err := yaml.Unmarshal(templatesYAML, &templates); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded templates.yaml: " + err.Error())
	}

	cfg := &Config{
		Session: SessionConfig{
			Variant:  strings.ToLower(envString("PHOTOBOOTH_VARIANT", VariantLocal)),
			Template: os.Getenv("PHOTOBOOTH_TEMPLATE"),

			TemplatesFile: os.Getenv("PHOTOBOOTH_TEMPLATES_FILE"),
			PhotoIDs:      strings.ToLower(envString("PHOTOBOOTH_PHOTO_IDS", "sequence")),
		},
		Camera: CameraConfig{
			SnapshotURL: os.Getenv("CAMERA_SNAPSHOT_URL"),
			Dir:         os.Getenv("CAMERA_DIR"),
			FPS:         envInt("CAMERA_FPS", constants.DefaultCameraFPS),
		},
		Backend: BackendConfig{
			URL: envString("AI_BACKEND_URL", "http://localhost:8000"),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", constants.DefaultWebPort),
		},
		Log: LogConfig{
			Level: envString("LOG_LEVEL", "info"),
		},
		Templates: templates,
	}

	if framePath := os.Getenv("PHOTOBOOTH_FRAME_PATH"); framePath != "" {
		cfg.Templates.setFramePath(framePath)
	}
	return cfg
}

// setFramePath points every frame template without an explicit asset at path.
func (t *TemplatesConfig) setFramePath(path string) {
	for name, tmpl := range t.Templates {
		if tmpl.Kind == "frame" && tmpl.FramePath == "" {
			tmpl.FramePath = path
			t.Templates[name] = tmpl
		}
	}
}

// MergeFile overlays templates from a YAML file on top of the embedded ones.
// Templates with the same name are replaced, a non-empty default wins.
func (t *TemplatesConfig) MergeFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return fmt.Errorf("reading templates file: %w", err)
	}

	var extra TemplatesConfig
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return fmt.Errorf("parsing templates file %s: %w", path, err)
	}

	if t.Templates == nil {
		t.Templates = make(map[string]TemplateConfig)
	}
	for name, tmpl := range extra.Templates {
		t.Templates[name] = tmpl
	}
	if extra.Default != "" {
		t.Default = extra.Default
	}
	return nil
}

// Template returns the named template, or the default one when name is empty.
func (t *TemplatesConfig) Template(name string) (string, TemplateConfig, bool) {
	if name == "" {
		name = t.Default
	}
	tmpl, ok := t.Templates[name]
	return name, tmpl, ok
}
