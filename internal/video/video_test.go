package video

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kozaktomas/photobooth/internal/photo"
)

func solidImage(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}
	return img
}

// fakeDevice returns an empty frame until readyAfter reads have happened.
type fakeDevice struct {
	openErr    error
	readyAfter int32
	opens      atomic.Int32
	reads      atomic.Int32
	mu         sync.Mutex
	closed     int
}

func (d *fakeDevice) Name() string { return "fake" }

func (d *fakeDevice) Open(context.Context) error {
	d.opens.Add(1)
	return d.openErr
}

func (d *fakeDevice) Read(context.Context) (image.Image, error) {
	if d.reads.Add(1) <= d.readyAfter {
		return image.NewRGBA(image.Rect(0, 0, 0, 0)), nil
	}
	return solidImage(4, 3, color.White), nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func TestWaitReady_ReadyImmediately(t *testing.T) {
	calls := 0
	ok := WaitReady(context.Background(), func() bool { calls++; return true }, time.Millisecond, 5)
	if !ok || calls != 1 {
		t.Errorf("expected immediate readiness with 1 call, got ok=%v calls=%d", ok, calls)
	}
}

func TestWaitReady_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	ok := WaitReady(context.Background(), func() bool { calls++; return false }, time.Millisecond, 5)
	if ok {
		t.Error("expected readiness to fail")
	}
	if calls != 5 {
		t.Errorf("expected 5 attempts, got %d", calls)
	}
}

func TestWaitReady_BecomesReady(t *testing.T) {
	calls := 0
	ok := WaitReady(context.Background(), func() bool { calls++; return calls == 3 }, time.Millisecond, 10)
	if !ok || calls != 3 {
		t.Errorf("expected ready on third attempt, got ok=%v calls=%d", ok, calls)
	}
}

func TestLocalSource_Acquire_WaitsForFrame(t *testing.T) {
	device := &fakeDevice{readyAfter: 2}
	src := NewLocalSource(device, 1000, WithReadyPolling(time.Millisecond, 1000))

	if err := src.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer src.Release()

	if !src.Ready() {
		t.Fatal("expected source to be ready after acquire")
	}
	img, err := src.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("unexpected frame bounds %v", img.Bounds())
	}
}

func TestLocalSource_Acquire_SoftFailure(t *testing.T) {
	device := &fakeDevice{readyAfter: 1 << 30}
	src := NewLocalSource(device, 1000, WithReadyPolling(time.Millisecond, 3))

	if err := src.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() should proceed without error, got %v", err)
	}
	defer src.Release()

	if _, err := src.Frame(); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestLocalSource_Acquire_OpenError(t *testing.T) {
	tests := []struct {
		err  error
		want Reason
	}{
		{fs.ErrPermission, ReasonPermissionDenied},
		{context.DeadlineExceeded, ReasonTimeout},
		{errors.New("no such camera"), ReasonNoDevice},
		{&AcquisitionError{Reason: ReasonTimeout}, ReasonTimeout},
	}

	for _, tt := range tests {
		src := NewLocalSource(&fakeDevice{openErr: tt.err}, 10)
		err := src.Acquire(context.Background())

		var acqErr *AcquisitionError
		if !errors.As(err, &acqErr) {
			t.Errorf("open error %v: expected AcquisitionError, got %v", tt.err, err)
			continue
		}
		if acqErr.Reason != tt.want {
			t.Errorf("open error %v: reason = %s, want %s", tt.err, acqErr.Reason, tt.want)
		}
	}
}

func TestLocalSource_Release_Idempotent(t *testing.T) {
	device := &fakeDevice{}
	src := NewLocalSource(device, 1000, WithReadyPolling(time.Millisecond, 100))

	if err := src.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := src.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := src.Release(); err != nil {
		t.Fatalf("second Release() error = %v", err)
	}

	if device.closed != 1 {
		t.Errorf("expected device closed once, got %d", device.closed)
	}
	if src.Ready() {
		t.Error("released source should not be ready")
	}
}

func TestLocalSource_Acquire_ConcurrentOpensOnce(t *testing.T) {
	device := &fakeDevice{}
	src := NewLocalSource(device, 1000, WithReadyPolling(time.Millisecond, 100))

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := src.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := device.opens.Load(); got != 1 {
		t.Errorf("expected device opened once, got %d", got)
	}
	if err := src.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	// No refresh loop may outlive Release.
	reads := device.reads.Load()
	time.Sleep(20 * time.Millisecond)
	if after := device.reads.Load(); after != reads {
		t.Errorf("device read %d times after Release", after-reads)
	}
	if device.closed != 1 {
		t.Errorf("expected device closed once, got %d", device.closed)
	}
}

func TestLocalSource_Release_DuringReadinessWait(t *testing.T) {
	device := &fakeDevice{readyAfter: 1 << 30}
	src := NewLocalSource(device, 1000, WithReadyPolling(time.Millisecond, 10000))

	errCh := make(chan error, 1)
	go func() { errCh <- src.Acquire(context.Background()) }()

	deadline := time.Now().Add(5 * time.Second)
	for device.reads.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh loop never started")
		}
		time.Sleep(time.Millisecond)
	}
	if err := src.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrReleased) {
			t.Errorf("expected ErrReleased, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire kept waiting after Release")
	}
}

func TestSnapshotDevice(t *testing.T) {
	jpegData, err := photo.EncodeJPEG(solidImage(6, 4, color.Black), 90)
	if err != nil {
		t.Fatalf("EncodeJPEG() error = %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(jpegData)
	})
	mux.HandleFunc("/locked", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	device := NewSnapshotDevice(server.URL+"/snapshot", time.Second)
	if err := device.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	img, err := device.Read(context.Background())
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if img.Bounds().Dx() != 6 || img.Bounds().Dy() != 4 {
		t.Errorf("unexpected snapshot bounds %v", img.Bounds())
	}

	assertReason(t, NewSnapshotDevice(server.URL+"/locked", time.Second).Open(context.Background()), ReasonPermissionDenied)
	assertReason(t, NewSnapshotDevice(server.URL+"/missing", time.Second).Open(context.Background()), ReasonNoDevice)
}

func TestDirDevice_Cycles(t *testing.T) {
	dir := t.TempDir()
	for i, name := range []string{"b.png", "a.png"} {
		data, _ := photo.EncodePNG(solidImage(i+1, 1, color.White))
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o600)

	device := NewDirDevice(dir)
	if err := device.Open(context.Background()); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	widths := make([]int, 0, 3)
	for range 3 {
		img, err := device.Read(context.Background())
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		widths = append(widths, img.Bounds().Dx())
	}

	// a.png (width 2) sorts before b.png (width 1)
	if widths[0] != 2 || widths[1] != 1 || widths[2] != 2 {
		t.Errorf("unexpected replay order by width: %v", widths)
	}
}

func TestDirDevice_OpenErrors(t *testing.T) {
	assertReason(t, NewDirDevice(t.TempDir()).Open(context.Background()), ReasonNoDevice)
	assertReason(t, NewDirDevice(filepath.Join(t.TempDir(), "missing")).Open(context.Background()), ReasonNoDevice)
}

func TestRemoteSource_Push(t *testing.T) {
	src := NewRemoteSource(WithReadyPolling(time.Millisecond, 2))

	if err := src.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if src.Ready() {
		t.Fatal("source should not be ready before a push")
	}

	data, _ := photo.EncodeJPEG(solidImage(8, 6, color.White), 90)
	if err := src.PushDataURL(photo.New("frame", data, time.Now()).DataURL()); err != nil {
		t.Fatalf("PushDataURL() error = %v", err)
	}

	img, err := src.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("unexpected frame width %d", img.Bounds().Dx())
	}

	if err := src.Push([]byte("garbage")); err == nil {
		t.Error("expected error for undecodable frame")
	}
	if !src.Ready() {
		t.Error("a bad push must not drop the previous frame")
	}

	src.Release()
	if src.Ready() {
		t.Error("released source should be empty")
	}
}

func assertReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var acqErr *AcquisitionError
	if !errors.As(err, &acqErr) {
		t.Fatalf("expected AcquisitionError, got %v", err)
	}
	if acqErr.Reason != want {
		t.Errorf("reason = %s, want %s", acqErr.Reason, want)
	}
}
