package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("appends to existing file", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "test.log")
		if err := os.WriteFile(logPath, []byte("initial\n"), 0644); err != nil {
			t.Fatalf("failed to seed log file: %v", err)
		}

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if _, err := rw.Write([]byte("appended\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_ = rw.Close()

		content, _ := os.ReadFile(logPath)
		if string(content) != "initial\nappended\n" {
			t.Errorf("content = %q", content)
		}
	})

	t.Run("write after close fails", func(t *testing.T) {
		rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), "test.log"), DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		_ = rw.Close()
		if _, err := rw.Write([]byte("x")); err == nil {
			t.Error("expected error writing to closed writer")
		}
		if err := rw.Close(); err != nil {
			t.Errorf("second Close returned %v", err)
		}
	})
}

func TestRotatingWriter_Rotates(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	chunk := bytes.Repeat([]byte("a"), 600*1024)
	for i := 0; i < 4; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	for _, p := range []string{logPath, logPath + ".1", logPath + ".2"} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", p, err)
		}
		if info.Size() != int64(len(chunk)) {
			t.Errorf("%s size = %d, want %d", p, info.Size(), len(chunk))
		}
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup beyond MaxBackups should not exist")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	chunk := bytes.Repeat([]byte("b"), 700*1024)
	for i := 0; i < 2; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Errorf("size = %d, want %d", info.Size(), len(chunk))
	}
	if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
		t.Error("no backup should be kept when MaxBackups is 0")
	}
}
