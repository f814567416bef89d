package usecase

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

// DefaultMaxSpoolBytes is the in-memory limit of one prefetched document
const DefaultMaxSpoolBytes = 8 << 20

// Archiver streams students' documents into a zip archive
type Archiver struct {
	fetcher      interfaces.FileFetcher
	metrics      *metrics.Metrics
	displayField string
	prefetch     int
	maxSpool     int64
	spoolDir     string
	manifest     bool
}

// ArchiverOption configures Archiver
type ArchiverOption func(*Archiver)

// WithArchiveMetrics records document and archive counters
func WithArchiveMetrics(m *metrics.Metrics) ArchiverOption {
	return func(x *Archiver) {
		x.metrics = m
	}
}

// WithArchiveDisplayField sets the field used for folder names
func WithArchiveDisplayField(key string) ArchiverOption {
	return func(x *Archiver) {
		x.displayField = key
	}
}

// WithPrefetch allows up to n documents to be fetched ahead of the writer.
// 1 (the default) fetches strictly one document at a time.
func WithPrefetch(n int) ArchiverOption {
	return func(x *Archiver) {
		if n < 1 {
			n = 1
		}
		x.prefetch = n
	}
}

// WithSpool sets the in-memory limit of a prefetched document and the
// directory for larger ones ("" is the OS temp dir).
func WithSpool(maxBytes int64, dir string) ArchiverOption {
	return func(x *Archiver) {
		x.maxSpool = maxBytes
		x.spoolDir = dir
	}
}

// WithManifest appends _manifest.toml to every archive
func WithManifest(enabled bool) ArchiverOption {
	return func(x *Archiver) {
		x.manifest = enabled
	}
}

// NewArchiver creates an Archiver reading documents through fetcher
func NewArchiver(fetcher interfaces.FileFetcher, opts ...ArchiverOption) *Archiver {
	a := &Archiver{
		fetcher:      fetcher,
		displayField: DefaultDisplayField,
		prefetch:     1,
		maxSpool:     DefaultMaxSpoolBytes,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type archiveItem struct {
	student *model.Student
	folder  string
	doc     model.Document
}

// Write streams job into w and closes the archive. Documents that cannot be
// opened are skipped and listed in the returned manifest. A document whose
// body breaks off after it was opened, a failure to write to w or a cancelled
// ctx aborts with ErrTagArchiveStream, so no entry ever holds partial content.
// The manifest is returned in every case.
func (a *Archiver) Write(ctx context.Context, job *model.ArchiveJob, w io.Writer) (*model.Manifest, error) {
	start := time.Now()
	cw := &countingWriter{w: w}
	manifest := &model.Manifest{
		ArchiveID: job.ID,
		Filename:  job.Filename,
		CreatedAt: job.CreatedAt,
		Students:  len(job.Students),
		Entries:   []model.ManifestEntry{},
		Skipped:   []model.SkippedDocument{},
	}

	err := a.write(ctx, job, cw, manifest)
	a.metrics.ArchiveDone(job.Kind, err == nil, cw.n, time.Since(start))

	ctxlog.From(ctx).Info("Archive finished",
		"archive_id", job.ID,
		"filename", job.Filename,
		"students", len(job.Students),
		"entries", len(manifest.Entries),
		"skipped", len(manifest.Skipped),
		"bytes", cw.n,
		"duration", time.Since(start),
		"aborted", err != nil,
	)
	return manifest, err
}

func (a *Archiver) write(ctx context.Context, job *model.ArchiveJob, w io.Writer, manifest *model.Manifest) error {
	level := job.Level
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	var items []archiveItem
	for _, s := range job.Students {
		if s == nil {
			continue
		}
		folder := FolderName(s, a.displayField)
		for _, doc := range s.Documents() {
			items = append(items, archiveItem{student: s, folder: folder, doc: doc})
		}
	}

	ew := &entryWriter{
		archiver: a,
		zw:       zw,
		modified: job.CreatedAt,
		names:    newEntryNames(),
		manifest: manifest,
	}

	var err error
	if a.prefetch > 1 && len(items) > 1 {
		err = a.writePrefetched(ctx, ew, items)
	} else {
		err = a.writeSequential(ctx, ew, items)
	}
	if err != nil {
		return err
	}

	if a.manifest {
		if err := ew.writeManifest(); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return goerr.Wrap(err, "failed to close archive", goerr.T(types.ErrTagArchiveStream))
	}
	return nil
}

func (a *Archiver) writeSequential(ctx context.Context, ew *entryWriter, items []archiveItem) error {
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return abortError(err)
		}

		body, err := a.fetcher.Open(ctx, item.doc.Field.URL)
		if err != nil {
			if ctx.Err() != nil {
				return abortError(ctx.Err())
			}
			ew.skip(ctx, item, err)
			continue
		}

		err = ew.add(ctx, item, body)
		_ = body.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

type fetchResult struct {
	spool *spool
	err   error
}

// writePrefetched fetches up to a.prefetch documents ahead into spools while
// this goroutine appends them in item order.
func (a *Archiver) writePrefetched(ctx context.Context, ew *entryWriter, items []archiveItem) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, egCtx := errgroup.WithContext(ctx)
	slots := make(chan struct{}, a.prefetch)
	queue := make(chan chan fetchResult, a.prefetch)

	eg.Go(func() error {
		defer close(queue)
		for _, item := range items {
			select {
			case slots <- struct{}{}:
			case <-egCtx.Done():
				return nil
			}

			result := make(chan fetchResult, 1)
			queue <- result
			eg.Go(func() error {
				result <- a.fetchToSpool(egCtx, item)
				return nil
			})
		}
		return nil
	})

	var writeErr error
	i := 0
	for result := range queue {
		r := <-result
		item := items[i]
		i++

		if writeErr != nil {
			_ = r.spool.Close()
			<-slots
			continue
		}

		switch {
		case ctx.Err() != nil:
			writeErr = abortError(ctx.Err())
			cancel()
		case r.err != nil && goerr.HasTag(r.err, types.ErrTagDocumentUnavailable):
			ew.skip(ctx, item, r.err)
		case r.err != nil:
			writeErr = prefetchError(item, r.err)
			cancel()
		default:
			if err := ew.add(ctx, item, r.spool); err != nil {
				writeErr = err
				cancel()
			}
		}
		_ = r.spool.Close()
		<-slots
	}

	_ = eg.Wait()
	if writeErr == nil && i < len(items) {
		// the producer stopped early, which only happens on cancellation
		writeErr = abortError(context.Cause(ctx))
	}
	return writeErr
}

func (a *Archiver) fetchToSpool(ctx context.Context, item archiveItem) fetchResult {
	body, err := a.fetcher.Open(ctx, item.doc.Field.URL)
	if err != nil {
		return fetchResult{err: err}
	}
	defer body.Close()

	s, err := newSpool(body, a.maxSpool, a.spoolDir)
	if err != nil {
		return fetchResult{err: err}
	}
	return fetchResult{spool: s}
}

// entryWriter owns the zip writer; only one goroutine may use it
type entryWriter struct {
	archiver *Archiver
	zw       *zip.Writer
	modified time.Time
	names    *entryNames
	manifest *model.Manifest
}

func (x *entryWriter) add(ctx context.Context, item archiveItem, body io.Reader) error {
	name := x.names.next(item.folder, EntryName(item.doc))
	w, err := x.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: x.modified,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create archive entry",
			goerr.V("name", name), goerr.T(types.ErrTagArchiveStream))
	}

	n, err := io.Copy(w, &trackedReader{r: body})
	if err != nil {
		if ctx.Err() != nil {
			return abortError(ctx.Err())
		}
		var re *readError
		if errors.As(err, &re) {
			// the entry header is already out; only aborting keeps the
			// truncated bytes from passing as a complete file
			return truncatedError(item, re.err)
		}
		return goerr.Wrap(err, "failed to write archive entry",
			goerr.V("name", name), goerr.T(types.ErrTagArchiveStream))
	}

	x.manifest.Entries = append(x.manifest.Entries, model.ManifestEntry{
		Name: name, URL: item.doc.Field.URL, Size: n,
	})
	x.archiver.metrics.DocumentWritten()
	ctxlog.From(ctx).Debug("Archive entry written", "name", name, "size", n)
	return nil
}

func (x *entryWriter) skip(ctx context.Context, item archiveItem, err error) {
	x.manifest.Skipped = append(x.manifest.Skipped, model.SkippedDocument{
		Student: item.folder,
		Field:   item.doc.Key,
		URL:     item.doc.Field.URL,
		Reason:  err.Error(),
	})
	x.archiver.metrics.DocumentSkipped()
	ctxlog.From(ctx).Warn("Skipped unavailable document",
		"student", item.student.UserID.String(),
		"field", item.doc.Key,
		"url", item.doc.Field.URL,
		"error", err,
	)
}

func (x *entryWriter) writeManifest() error {
	data, err := toml.Marshal(x.manifest)
	if err != nil {
		return goerr.Wrap(err, "failed to encode manifest")
	}

	w, err := x.zw.CreateHeader(&zip.FileHeader{
		Name:     model.ManifestName,
		Method:   zip.Deflate,
		Modified: x.modified,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to create manifest entry", goerr.T(types.ErrTagArchiveStream))
	}
	if _, err := w.Write(data); err != nil {
		return goerr.Wrap(err, "failed to write manifest entry", goerr.T(types.ErrTagArchiveStream))
	}
	return nil
}

// prefetchError classifies a failed spool: a broken document body truncates
// the archive like it does in sequential mode, anything else is a local
// failure.
func prefetchError(item archiveItem, err error) error {
	var re *readError
	if errors.As(err, &re) {
		return truncatedError(item, re.err)
	}
	return goerr.Wrap(err, "failed to spool document",
		goerr.V("url", item.doc.Field.URL), goerr.T(types.ErrTagArchiveStream))
}

func truncatedError(item archiveItem, cause error) error {
	return goerr.Wrap(cause, "document body truncated",
		goerr.V("student", item.folder),
		goerr.V("field", item.doc.Key),
		goerr.V("url", item.doc.Field.URL),
		goerr.T(types.ErrTagArchiveStream))
}

func abortError(cause error) error {
	return goerr.Wrap(cause, "archive aborted", goerr.T(types.ErrTagArchiveStream))
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (x *countingWriter) Write(p []byte) (int, error) {
	n, err := x.w.Write(p)
	x.n += int64(n)
	return n, err
}
