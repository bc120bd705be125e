package log

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAsyncFileWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "core.log")

	w := NewAsyncFileWriter(path, 1, 1, 1)
	w.Start()
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := w.Write([]byte("world\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back log file: %v", err)
	}
	if string(b) != "hello\nworld\n" {
		t.Fatalf("unexpected log contents: %q", b)
	}
}

func TestAsyncFileWriterWriteAfterStop(t *testing.T) {
	dir := t.TempDir()
	w := NewAsyncFileWriter(filepath.Join(dir, "core.log"), 1, 1, 1)
	w.Start()
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, err := w.Write([]byte("late\n")); err == nil {
		t.Fatalf("expected write after stop to fail")
	}
}
