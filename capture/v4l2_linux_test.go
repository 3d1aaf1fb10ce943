//go:build linux

package capture_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wthielen/snapcam/capture"
)

func TestOpenRejectsNonDevices(t *testing.T) {
	dir := t.TempDir()
	regular := filepath.Join(dir, "video0")
	if err := os.WriteFile(regular, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		want string
	}{
		{filepath.Join(dir, "missing"), "Cannot identify"},
		{regular, "is no device"},
		{dir, "is no device"},
	}
	for _, tt := range tests {
		dev, err := capture.Open(tt.path)
		if err == nil {
			dev.Close()
			t.Errorf("Open(%s) succeeded", tt.path)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("Open(%s) = %v, want %q", tt.path, err, tt.want)
		}
	}
}

func TestOpenRejectsNonCaptureDevice(t *testing.T) {
	if _, err := os.Stat("/dev/null"); err != nil {
		t.Skip(err)
	}
	_, err := capture.Open("/dev/null")
	if err == nil {
		t.Fatal("Open(/dev/null) succeeded")
	}
	if !strings.Contains(err.Error(), "/dev/null") {
		t.Errorf("error %v does not name the device", err)
	}
}

func TestPixelFormatYUYV(t *testing.T) {
	if capture.PixelFormatYUYV != 0x56595559 {
		t.Errorf("PixelFormatYUYV = %#x", capture.PixelFormatYUYV)
	}
}
