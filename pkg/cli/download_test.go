package cli_test

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/docpack/docpack/pkg/cli"
)

func newUpstream(t *testing.T) *httptest.Server {
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/roster":
			_, _ = fmt.Fprintf(w, `[
			  {"student": {"user_id": 7, "email": "dana@example.com", "batch_info": "2024",
			    "fields": {"field_20": {"value": "Dana Lee"},
			               "field_4": {"url": "%[1]s/files/offer.pdf"},
			               "field_5": {"url": "%[1]s/files/gone.pdf"}}}},
			  {"student": {"user_id": 8, "email": "eli@example.com", "batch_info": "2023",
			    "fields": {"field_4": {"url": "%[1]s/files/eli.pdf"}}}}
			]`, base)
		case "/files/offer.pdf":
			_, _ = io.WriteString(w, "offer letter")
		case "/files/eli.pdf":
			_, _ = io.WriteString(w, "eli doc")
		default:
			http.NotFound(w, r)
		}
	}))
	base = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func zipNames(t *testing.T, path string) []string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	gt.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

func TestDownloadCommand(t *testing.T) {
	upstream := newUpstream(t)
	dir := t.TempDir()

	t.Run("all students", func(t *testing.T) {
		out := filepath.Join(dir, "all.zip")
		err := cli.Run(context.Background(), []string{
			"docpack", "--log-level", "error",
			"download",
			"--upstream-url", upstream.URL + "/roster",
			"--output", out,
		})
		gt.NoError(t, err)
		gt.Equal(t, zipNames(t, out), []string{"Dana_Lee/offer.pdf", "eli@example.com/eli.pdf"})
	})

	t.Run("one student with manifest", func(t *testing.T) {
		out := filepath.Join(dir, "dana.zip")
		err := cli.Run(context.Background(), []string{
			"docpack", "--log-level", "error",
			"download",
			"--upstream-url", upstream.URL + "/roster",
			"--student", "7",
			"--archive-manifest",
			"--output", out,
		})
		gt.NoError(t, err)
		gt.Equal(t, zipNames(t, out), []string{"Dana_Lee/offer.pdf", "_manifest.toml"})
	})

	t.Run("batch filter", func(t *testing.T) {
		out := filepath.Join(dir, "batch.zip")
		err := cli.Run(context.Background(), []string{
			"docpack", "--log-level", "error",
			"download",
			"--upstream-url", upstream.URL + "/roster",
			"--batch", "2023",
			"--output", out,
		})
		gt.NoError(t, err)
		gt.Equal(t, zipNames(t, out), []string{"eli@example.com/eli.pdf"})
	})

	t.Run("unknown student leaves no file", func(t *testing.T) {
		out := filepath.Join(dir, "missing.zip")
		err := cli.Run(context.Background(), []string{
			"docpack", "--log-level", "error",
			"download",
			"--upstream-url", upstream.URL + "/roster",
			"--student", "404",
			"--output", out,
		})
		gt.Error(t, err)
		_, statErr := os.Stat(out)
		gt.True(t, os.IsNotExist(statErr))
	})
}

func TestRun_InvalidLogLevel(t *testing.T) {
	err := cli.Run(context.Background(), []string{"docpack", "--log-level", "loud", "download", "--upstream-url", "http://localhost:1"})
	gt.Error(t, err)
}
