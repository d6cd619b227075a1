// Package loadfile writes derived annotations in the tab-separated format
// read by the annotation loader.
package loadfile

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"genorollup/internal/logger"
	"genorollup/internal/rollup"
	"genorollup/pkg/domain"
)

// Columns is the number of fields on every load-file line.
const Columns = 11

// SkipRecorder receives the number of rows dropped for lack of a target ID.
type SkipRecorder interface {
	RowsSkipped(n int)
}

// Stats summarizes what a Writer emitted.
type Stats struct {
	Targets int
	Written int
	Skipped int
}

// Writer emits one line per derived annotation. Rows whose target has no
// accession ID are skipped and counted. Writer is not safe for concurrent
// use.
type Writer struct {
	out   *bufio.Writer
	log   *zap.SugaredLogger
	skips SkipRecorder
	stats Stats
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the writer's logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(w *Writer) { w.log = logger.Component(l, "loadfile") }
}

// WithSkipRecorder reports skipped rows to r.
func WithSkipRecorder(r SkipRecorder) Option {
	return func(w *Writer) { w.skips = r }
}

// NewWriter returns a Writer buffering output to out.
func NewWriter(out io.Writer, opts ...Option) *Writer {
	w := &Writer{out: bufio.NewWriter(out), log: logger.Nop()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WriteRecord writes every derived annotation of rec in emission order.
func (w *Writer) WriteRecord(rec rollup.TargetRecord) error {
	w.stats.Targets++
	if rec.ID() == "" && rec.Len() > 0 {
		w.log.Warnw("target has no accession id, skipping rows",
			"target", rec.Key(), "kind", string(rec.Kind()), "rows", rec.Len())
	}
	for _, d := range rec.Annotations() {
		if err := w.Write(d); err != nil {
			return errors.Wrapf(err, "write target %d", rec.Key())
		}
	}
	return nil
}

// Write writes a single row.
func (w *Writer) Write(d domain.DerivedAnnotation) error {
	if d.TargetID == "" {
		w.stats.Skipped++
		if w.skips != nil {
			w.skips.RowsSkipped(1)
		}
		return nil
	}
	if _, err := w.out.WriteString(Line(d)); err != nil {
		return errors.Wrap(err, "write load-file line")
	}
	w.stats.Written++
	return nil
}

// Flush writes buffered lines to the underlying writer.
func (w *Writer) Flush() error {
	return errors.Wrap(w.out.Flush(), "flush load file")
}

// Stats returns the counts so far.
func (w *Writer) Stats() Stats { return w.stats }

var fieldSpace = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

// Line renders d as one newline-terminated load-file line. The creation date
// column is left empty so the loader stamps the load date, and the ID kind
// column is empty because every target ID is an MGI accession ID.
func Line(d domain.DerivedAnnotation) string {
	fields := [Columns]string{
		d.TermID,
		d.TargetID,
		d.ReferenceID,
		d.EvidenceCode,
		d.InferredFrom,
		d.Qualifier,
		d.User,
		"",
		d.Notes,
		"",
		d.Properties,
	}
	for i, f := range fields {
		fields[i] = fieldSpace.Replace(f)
	}
	return strings.Join(fields[:], "\t") + "\n"
}

// File is a load file being written to a temporary file beside its final
// path. Close moves it into place; Abort discards it.
type File struct {
	*Writer
	path string
	f    *os.File
	done bool
}

// Create starts the load file for path, making parent directories as
// needed. Nothing appears at path until Close succeeds.
func Create(path string, opts ...Option) (*File, error) {
	if path == "" {
		return nil, errors.New("load file path required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrapf(err, "create output dir %s", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open output file %s", path)
	}
	return &File{Writer: NewWriter(f, opts...), path: path, f: f}, nil
}

// Path returns the file's final location.
func (f *File) Path() string { return f.path }

// Close flushes the file and renames it to its final path. A failed Close
// leaves no file behind.
func (f *File) Close() error {
	if f.done {
		return nil
	}
	f.done = true
	tmp := f.f.Name()
	err := f.Flush()
	if err == nil {
		err = errors.Wrapf(f.f.Sync(), "sync output file %s", f.path)
	}
	if err == nil {
		err = errors.Wrapf(f.f.Chmod(0o644), "chmod output file %s", f.path) //nolint:gosec // load files are read by the loader account
	}
	if closeErr := f.f.Close(); err == nil && closeErr != nil {
		err = errors.Wrapf(closeErr, "close output file %s", f.path)
	}
	if err == nil {
		err = errors.Wrapf(os.Rename(tmp, f.path), "move output file into %s", f.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}

// Abort closes and removes the unfinished file. Any earlier file at the
// final path is left untouched.
func (f *File) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	closeErr := f.f.Close()
	if err := os.Remove(f.f.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove unfinished output file %s", f.f.Name())
	}
	return errors.Wrapf(closeErr, "close output file %s", f.path)
}
