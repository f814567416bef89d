package usecase

import (
	"bytes"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
)

// spool holds one fetched document until the writer is ready for it. Bodies up
// to limit bytes stay in memory; larger ones go to a temp file.
type spool struct {
	buf  *bytes.Buffer
	file *os.File
	size int64
}

// readError marks a failure on the document side of a copy, as opposed to the
// archive sink.
type readError struct{ err error }

func (e *readError) Error() string { return e.err.Error() }
func (e *readError) Unwrap() error { return e.err }

func newSpool(r io.Reader, limit int64, dir string) (*spool, error) {
	buf := &bytes.Buffer{}
	n, err := io.CopyN(buf, r, limit+1)
	if err != nil && err != io.EOF {
		return nil, &readError{err: err}
	}
	if n <= limit {
		return &spool{buf: buf, size: n}, nil
	}

	f, err := os.CreateTemp(dir, "docpack-spool-*")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create spool file")
	}
	s := &spool{file: f}

	if _, err := buf.WriteTo(f); err != nil {
		_ = s.Close()
		return nil, goerr.Wrap(err, "failed to write spool file", goerr.V("path", f.Name()))
	}
	if _, err := io.Copy(f, &trackedReader{r: r}); err != nil {
		_ = s.Close()
		return nil, err
	}
	if s.size, err = f.Seek(0, io.SeekCurrent); err != nil {
		_ = s.Close()
		return nil, goerr.Wrap(err, "failed to stat spool file", goerr.V("path", f.Name()))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = s.Close()
		return nil, goerr.Wrap(err, "failed to rewind spool file", goerr.V("path", f.Name()))
	}
	return s, nil
}

func (s *spool) Read(p []byte) (int, error) {
	if s.file != nil {
		return s.file.Read(p)
	}
	return s.buf.Read(p)
}

func (s *spool) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	name := s.file.Name()
	_ = s.file.Close()
	s.file = nil
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to remove spool file", goerr.V("path", name))
	}
	return nil
}

// trackedReader converts read failures into *readError so io.Copy callers can
// tell which side broke.
type trackedReader struct {
	r io.Reader
}

func (t *trackedReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		return n, &readError{err: err}
	}
	return n, err
}
