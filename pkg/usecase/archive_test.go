package usecase_test

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/pelletier/go-toml/v2"

	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
	"github.com/docpack/docpack/pkg/usecase"
)

// fakeFetcher serves documents from memory; unknown URLs are unavailable.
// Bodies in broken deliver their content and then fail.
type fakeFetcher struct {
	files  map[string]string
	broken map[string]string

	mu    sync.Mutex
	calls []string
}

func (f *fakeFetcher) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "cancelled", goerr.T(types.ErrTagDocumentUnavailable))
	}
	if partial, ok := f.broken[url]; ok {
		return io.NopCloser(io.MultiReader(strings.NewReader(partial), errReader{})), nil
	}
	content, ok := f.files[url]
	if !ok {
		return nil, goerr.New("document not found", goerr.V("url", url), goerr.T(types.ErrTagDocumentUnavailable))
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

type errReader struct{}

func (errReader) Read(p []byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

var archiveTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testStudents() []*model.Student {
	return []*model.Student{
		{
			UserID: "1",
			Email:  "alice@example.com",
			Fields: model.Fields{
				"field_20": {Value: "Alice Smith"},
				"field_2":  {URL: "https://files.example.com/a/transcript.pdf"},
				"field_1":  {URL: "https://files.example.com/a/9f8e7d", DocName: "cv.pdf"},
			},
		},
		{
			UserID: "2",
			Email:  "bob@example.com",
			Fields: model.Fields{
				"field_20": {Value: "Bob"},
				"field_3":  {URL: "https://files.example.com/b/missing.pdf"},
				"field_1":  {URL: "https://files.example.com/b/id.png"},
			},
		},
	}
}

func testFiles() map[string]string {
	return map[string]string{
		"https://files.example.com/a/9f8e7d":         "alice cv",
		"https://files.example.com/a/transcript.pdf": "alice transcript",
		"https://files.example.com/b/id.png":         "bob id card",
	}
}

func testJob(students []*model.Student) *model.ArchiveJob {
	return &model.ArchiveJob{
		ID:        "job-1",
		Kind:      model.ArchiveKindAll,
		Filename:  usecase.AllStudentsFilename,
		Students:  students,
		Level:     9,
		CreatedAt: archiveTime,
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	gt.NoError(t, err)

	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		gt.NoError(t, err)
		b, err := io.ReadAll(rc)
		gt.NoError(t, err)
		gt.NoError(t, rc.Close())
		files[f.Name] = string(b)
	}
	return files
}

func zipNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	gt.NoError(t, err)

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestArchiver_Write(t *testing.T) {
	ctx := context.Background()
	fetcher := &fakeFetcher{files: testFiles()}
	archiver := usecase.NewArchiver(fetcher)

	var buf bytes.Buffer
	manifest, err := archiver.Write(ctx, testJob(testStudents()), &buf)
	gt.NoError(t, err)

	gt.Equal(t, zipNames(t, buf.Bytes()), []string{
		"Alice_Smith/cv.pdf",
		"Alice_Smith/transcript.pdf",
		"Bob/id.png",
	})

	files := readZip(t, buf.Bytes())
	gt.Equal(t, files["Alice_Smith/cv.pdf"], "alice cv")
	gt.Equal(t, files["Alice_Smith/transcript.pdf"], "alice transcript")
	gt.Equal(t, files["Bob/id.png"], "bob id card")

	gt.Equal(t, manifest.ArchiveID, "job-1")
	gt.Equal(t, manifest.Students, 2)
	gt.Equal(t, len(manifest.Entries), 3)
	gt.Equal(t, len(manifest.Skipped), 1)
	gt.Equal(t, manifest.Skipped[0].Student, "Bob")
	gt.Equal(t, manifest.Skipped[0].Field, "field_3")
	gt.Equal(t, manifest.Skipped[0].URL, "https://files.example.com/b/missing.pdf")

	// every document was attempted once, in order
	gt.Equal(t, fetcher.calls, []string{
		"https://files.example.com/a/9f8e7d",
		"https://files.example.com/a/transcript.pdf",
		"https://files.example.com/b/id.png",
		"https://files.example.com/b/missing.pdf",
	})
}

func TestArchiver_WriteEmpty(t *testing.T) {
	testCases := []struct {
		name     string
		students []*model.Student
	}{
		{name: "no students", students: nil},
		{name: "students without documents", students: []*model.Student{
			{UserID: "1", Fields: model.Fields{"field_20": {Value: "Nobody"}}},
			nil,
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			manifest, err := usecase.NewArchiver(&fakeFetcher{}).Write(context.Background(), testJob(tc.students), &buf)
			gt.NoError(t, err)
			gt.Equal(t, len(zipNames(t, buf.Bytes())), 0)
			gt.Equal(t, len(manifest.Entries), 0)
		})
	}
}

func TestArchiver_PrefetchIsEquivalent(t *testing.T) {
	ctx := context.Background()
	students := testStudents()

	var sequential bytes.Buffer
	_, err := usecase.NewArchiver(&fakeFetcher{files: testFiles()}).
		Write(ctx, testJob(students), &sequential)
	gt.NoError(t, err)

	t.Run("in memory", func(t *testing.T) {
		var prefetched bytes.Buffer
		manifest, err := usecase.NewArchiver(&fakeFetcher{files: testFiles()}, usecase.WithPrefetch(4)).
			Write(ctx, testJob(students), &prefetched)
		gt.NoError(t, err)
		gt.True(t, bytes.Equal(sequential.Bytes(), prefetched.Bytes()))
		gt.Equal(t, len(manifest.Skipped), 1)
	})

	t.Run("spooled to disk", func(t *testing.T) {
		var prefetched bytes.Buffer
		archiver := usecase.NewArchiver(&fakeFetcher{files: testFiles()},
			usecase.WithPrefetch(2),
			usecase.WithSpool(4, t.TempDir()),
		)
		_, err := archiver.Write(ctx, testJob(students), &prefetched)
		gt.NoError(t, err)
		gt.True(t, bytes.Equal(sequential.Bytes(), prefetched.Bytes()))
	})
}

func TestArchiver_NameCollision(t *testing.T) {
	students := []*model.Student{
		{
			UserID: "1",
			Fields: model.Fields{
				"field_20": {Value: "Carol"},
				"field_1":  {URL: "https://files.example.com/c/1", DocName: "scan.pdf"},
				"field_2":  {URL: "https://files.example.com/c/2", DocName: "scan.pdf"},
				"field_10": {URL: "https://files.example.com/c/3", DocName: "scan.pdf"},
			},
		},
	}
	fetcher := &fakeFetcher{files: map[string]string{
		"https://files.example.com/c/1": "one",
		"https://files.example.com/c/2": "two",
		"https://files.example.com/c/3": "ten",
	}}

	var buf bytes.Buffer
	_, err := usecase.NewArchiver(fetcher).Write(context.Background(), testJob(students), &buf)
	gt.NoError(t, err)

	files := readZip(t, buf.Bytes())
	gt.Equal(t, files["Carol/scan.pdf"], "one")
	gt.Equal(t, files["Carol/scan_2.pdf"], "two")
	gt.Equal(t, files["Carol/scan_3.pdf"], "ten")
}

func TestArchiver_Manifest(t *testing.T) {
	var buf bytes.Buffer
	archiver := usecase.NewArchiver(&fakeFetcher{files: testFiles()}, usecase.WithManifest(true))
	_, err := archiver.Write(context.Background(), testJob(testStudents()), &buf)
	gt.NoError(t, err)

	files := readZip(t, buf.Bytes())
	raw, ok := files[model.ManifestName]
	gt.True(t, ok)

	var manifest model.Manifest
	gt.NoError(t, toml.Unmarshal([]byte(raw), &manifest))
	gt.Equal(t, manifest.ArchiveID, "job-1")
	gt.Equal(t, len(manifest.Entries), 3)
	gt.Equal(t, len(manifest.Skipped), 1)
	gt.Equal(t, manifest.Skipped[0].URL, "https://files.example.com/b/missing.pdf")
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestArchiver_WriteFailureAborts(t *testing.T) {
	for _, prefetch := range []int{1, 3} {
		archiver := usecase.NewArchiver(&fakeFetcher{files: testFiles()}, usecase.WithPrefetch(prefetch))
		manifest, err := archiver.Write(context.Background(), testJob(testStudents()), failingWriter{})
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagArchiveStream))
		gt.Value(t, manifest).NotNil()
	}
}

func TestArchiver_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, prefetch := range []int{1, 3} {
		fetcher := &fakeFetcher{files: testFiles()}
		archiver := usecase.NewArchiver(fetcher, usecase.WithPrefetch(prefetch))

		var buf bytes.Buffer
		manifest, err := archiver.Write(ctx, testJob(testStudents()), &buf)
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagArchiveStream))
		gt.Equal(t, len(manifest.Entries), 0)
		gt.Equal(t, len(manifest.Skipped), 0)
	}
}

func TestArchiver_BrokenBodyAborts(t *testing.T) {
	students := []*model.Student{
		{
			UserID: "1",
			Email:  "a@x",
			Fields: model.Fields{
				"field_1": {URL: "https://files.example.com/a/big.pdf"},
				"field_2": {URL: "https://files.example.com/a/ok.pdf"},
			},
		},
	}

	testCases := []struct {
		name string
		opts []usecase.ArchiverOption
	}{
		{name: "sequential", opts: nil},
		{name: "prefetch in memory", opts: []usecase.ArchiverOption{usecase.WithPrefetch(4)}},
		{name: "prefetch spooled to disk", opts: []usecase.ArchiverOption{
			usecase.WithPrefetch(4),
			usecase.WithSpool(4, t.TempDir()),
		}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := &fakeFetcher{
				files:  map[string]string{"https://files.example.com/a/ok.pdf": "ok body"},
				broken: map[string]string{"https://files.example.com/a/big.pdf": "first half"},
			}

			var buf bytes.Buffer
			manifest, err := usecase.NewArchiver(fetcher, tc.opts...).
				Write(context.Background(), testJob(students), &buf)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagArchiveStream))
			gt.Equal(t, len(manifest.Entries), 0)
			gt.Equal(t, len(manifest.Skipped), 0)

			// without a central directory the partial output cannot be opened
			_, zipErr := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
			gt.Error(t, zipErr)
		})
	}
}
