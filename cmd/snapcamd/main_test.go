package main

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestWriteLockFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapcam.pid")
	if err := writeLockFile(path); err != nil {
		t.Fatalf("writeLockFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("pid file holds %q", data)
	}

	if err := writeLockFile(filepath.Join(t.TempDir(), "missing", "snapcam.pid")); err == nil {
		t.Error("pid file in a missing directory reported no error")
	}
}
