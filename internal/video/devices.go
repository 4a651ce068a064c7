package video

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/photobooth/internal/photo"
)

// SnapshotDevice reads frames from an HTTP endpoint that returns the current
// camera image (webcam bridges, IP cameras, mjpg-streamer's ?action=snapshot).
type SnapshotDevice struct {
	url    string
	client *http.Client
}

// NewSnapshotDevice creates a device polling url for frames.
func NewSnapshotDevice(url string, timeout time.Duration) *SnapshotDevice {
	return &SnapshotDevice{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (d *SnapshotDevice) Name() string {
	return d.url
}

// Open probes the endpoint once so permission and availability problems
// surface at acquisition time.
func (d *SnapshotDevice) Open(ctx context.Context) error {
	_, err := d.fetch(ctx)
	return err
}

func (d *SnapshotDevice) Read(ctx context.Context) (image.Image, error) {
	data, err := d.fetch(ctx)
	if err != nil {
		return nil, err
	}
	return photo.DecodeImage(data)
}

func (d *SnapshotDevice) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, &AcquisitionError{Reason: ReasonNoDevice, Err: err}
	}

	resp, err := d.client.Do(req) //nolint:gosec // URL is operator configuration
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return nil, &AcquisitionError{Reason: ReasonTimeout, Err: err}
		}
		return nil, &AcquisitionError{Reason: ReasonNoDevice, Err: err}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, &AcquisitionError{Reason: ReasonPermissionDenied, Err: fmt.Errorf("snapshot returned status %d", resp.StatusCode)}
	default:
		return nil, &AcquisitionError{Reason: ReasonNoDevice, Err: fmt.Errorf("snapshot returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return data, nil
}

func (d *SnapshotDevice) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".gif"}

// DirDevice replays the images of a directory as a camera, advancing one
// file per read and wrapping around.
type DirDevice struct {
	dir string

	mu    sync.Mutex
	files []string
	next  int
}

// NewDirDevice creates a device replaying images from dir.
func NewDirDevice(dir string) *DirDevice {
	return &DirDevice{dir: dir}
}

func (d *DirDevice) Name() string {
	return d.dir
}

func (d *DirDevice) Open(_ context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return classify(fmt.Errorf("reading camera directory: %w", err))
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(entry.Name()))) {
			files = append(files, filepath.Join(d.dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		return &AcquisitionError{Reason: ReasonNoDevice, Err: fmt.Errorf("no images in %s", d.dir)}
	}
	slices.Sort(files)

	d.mu.Lock()
	d.files = files
	d.next = 0
	d.mu.Unlock()
	return nil
}

func (d *DirDevice) Read(_ context.Context) (image.Image, error) {
	d.mu.Lock()
	if len(d.files) == 0 {
		d.mu.Unlock()
		return nil, ErrNotReady
	}
	path := d.files[d.next]
	d.next = (d.next + 1) % len(d.files)
	d.mu.Unlock()

	data, err := os.ReadFile(path) //nolint:gosec // path listed from the configured directory
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return photo.DecodeImage(data)
}

func (d *DirDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = nil
	d.next = 0
	return nil
}
