package csvlog

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MrJamesThe3rd/pocketmoney/internal/ledger"
)

var ErrClosed = errors.New("log writer closed")

type job struct {
	ctx    context.Context
	rec    ledger.Record
	result chan error
}

// Writer appends records to one log file. A single goroutine performs the
// writes in submission order; the file is opened on the first append.
type Writer struct {
	path string
	perm os.FileMode

	mu     sync.RWMutex
	closed bool
	jobs   chan job
	done   chan struct{}

	file *os.File
	csv  *csv.Writer
}

type Option func(*Writer)

// WithFileMode sets the permissions of a newly created log file.
func WithFileMode(perm os.FileMode) Option {
	return func(w *Writer) { w.perm = perm }
}

func Open(path string, opts ...Option) *Writer {
	w := &Writer{
		path: path,
		perm: 0o644,
		jobs: make(chan job),
		done: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	go w.run()

	return w
}

// Factory returns a constructor for per-account writers inside dir.
func Factory(dir string, opts ...Option) func(accountID string) (ledger.Appender, error) {
	return func(accountID string) (ledger.Appender, error) {
		return Open(PathFor(dir, accountID), opts...), nil
	}
}

func (w *Writer) Path() string { return w.path }

// Append writes one row and syncs it to stable storage. The returned error
// says exactly whether the row is in the file: a row whose ctx ends before the
// writer picks it up is dropped, and once the write has started Append waits
// for its outcome regardless of ctx.
func (w *Writer) Append(ctx context.Context, rec ledger.Record) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.closed {
		return ErrClosed
	}

	j := job{ctx: ctx, rec: rec, result: make(chan error, 1)}

	select {
	case w.jobs <- j:
	case <-ctx.Done():
		return fmt.Errorf("queueing log row: %w", ctx.Err())
	}

	return <-j.result
}

// Close waits for queued rows and closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}

	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	<-w.done

	if w.file == nil {
		return nil
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", w.path, err)
	}

	return nil
}

func (w *Writer) run() {
	defer close(w.done)

	for j := range w.jobs {
		if err := j.ctx.Err(); err != nil {
			j.result <- fmt.Errorf("queueing log row: %w", err)
			continue
		}

		j.result <- w.write(j.rec)
	}
}

// write appends one row. On failure the file is cut back to its previous
// size and closed, so a torn row never stays behind and the next append
// starts over with a fresh handle.
func (w *Writer) write(rec ledger.Record) error {
	if err := w.ensureOpen(); err != nil {
		return err
	}

	info, err := w.file.Stat()
	if err != nil {
		w.discard(-1)
		return fmt.Errorf("stat %s: %w", w.path, err)
	}

	if err := w.csv.Write(formatRow(rec)); err != nil {
		w.discard(info.Size())
		return fmt.Errorf("writing row: %w", err)
	}

	if err := w.flush(); err != nil {
		w.discard(info.Size())
		return err
	}

	return nil
}

// discard truncates the open file to size (unless negative) and drops the
// handle. csv.Writer errors are sticky, so the writer cannot be reused.
func (w *Writer) discard(size int64) {
	if size >= 0 {
		_ = w.file.Truncate(size)
	}

	_ = w.file.Close()

	w.file = nil
	w.csv = nil
}

func (w *Writer) ensureOpen() error {
	if w.file != nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, w.perm)
	if err != nil {
		return fmt.Errorf("opening %s: %w", w.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat %s: %w", w.path, err)
	}

	cw := csv.NewWriter(f)

	if info.Size() == 0 {
		if err := writeHeader(cw, f); err != nil {
			_ = f.Truncate(0)
			f.Close()
			return fmt.Errorf("writing header of %s: %w", w.path, err)
		}
	}

	w.file = f
	w.csv = cw

	return nil
}

func writeHeader(cw *csv.Writer, f *os.File) error {
	if err := cw.Write(Header); err != nil {
		return err
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	return f.Sync()
}

func (w *Writer) flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("flushing %s: %w", w.path, err)
	}

	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", w.path, err)
	}

	return nil
}

var _ ledger.Appender = (*Writer)(nil)
