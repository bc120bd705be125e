// Package log provides the core's structured, leveled logging on top of an
// async rotating file writer, in the spirit of the teacher's own small log
// package (log/async_file_writer_test.go) — here rebuilt over
// lumberjack.v2, the ecosystem's rotating-file io.Writer, since the
// teacher's hand-rolled implementation file wasn't retrievable from the
// pack.
package log

import (
	"io"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// AsyncFileWriter batches writes onto a background goroutine so that callers
// never block on log-file I/O or rotation. maxSizeMB, maxBackups and
// maxAgeDays map directly onto lumberjack.Logger's fields.
type AsyncFileWriter struct {
	underlying *lumberjack.Logger
	queue      chan []byte
	done       chan struct{}
	wg         sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewAsyncFileWriter creates an AsyncFileWriter rotating at maxSizeMB
// megabytes, retaining maxBackups old files for up to maxAgeDays days.
func NewAsyncFileWriter(path string, maxSizeMB, maxBackups, maxAgeDays int) *AsyncFileWriter {
	return &AsyncFileWriter{
		underlying: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
		queue: make(chan []byte, 1024),
		done:  make(chan struct{}),
	}
}

// Start begins the background writer goroutine. Calling Start twice is a
// no-op.
func (w *AsyncFileWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.loop()
}

func (w *AsyncFileWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case b, ok := <-w.queue:
			if !ok {
				return
			}
			w.underlying.Write(b)
		case <-w.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case b := <-w.queue:
					w.underlying.Write(b)
				default:
					return
				}
			}
		}
	}
}

// Write enqueues b for asynchronous persistence. It never blocks on disk
// I/O; it copies b since the caller may reuse its backing array.
func (w *AsyncFileWriter) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	w.mu.Lock()
	stopped := w.stopped
	w.mu.Unlock()
	if stopped {
		return 0, io.ErrClosedPipe
	}
	select {
	case w.queue <- cp:
	case <-w.done:
		return 0, io.ErrClosedPipe
	}
	return len(p), nil
}

// Stop flushes the queue and closes the underlying rotating file.
func (w *AsyncFileWriter) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.done)
	w.wg.Wait()
	return w.underlying.Close()
}
