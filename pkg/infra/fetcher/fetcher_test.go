package fetcher_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/docpack/docpack/pkg/domain/types"
	"github.com/docpack/docpack/pkg/infra/fetcher"
)

func TestFetcher_Open(t *testing.T) {
	ctx := context.Background()
	mux := http.NewServeMux()
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "%PDF-1.4 content")
	})
	mux.HandleFunc("/slow.pdf", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("success", func(t *testing.T) {
		rc, err := fetcher.New().Open(ctx, srv.URL+"/doc.pdf")
		gt.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		gt.NoError(t, err)
		gt.Equal(t, string(data), "%PDF-1.4 content")
	})

	testCases := []struct {
		name string
		url  string
	}{
		{name: "not found", url: srv.URL + "/missing.pdf"},
		{name: "ftp scheme", url: "ftp://example.com/a.pdf"},
		{name: "relative url", url: "a.pdf"},
		{name: "invalid url", url: "http://[::1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fetcher.New().Open(ctx, tc.url)
			gt.Error(t, err)
			gt.True(t, goerr.HasTag(err, types.ErrTagDocumentUnavailable))
		})
	}

	t.Run("timeout", func(t *testing.T) {
		_, err := fetcher.New(fetcher.WithTimeout(50*time.Millisecond)).Open(ctx, srv.URL+"/slow.pdf")
		gt.Error(t, err)
		gt.True(t, goerr.HasTag(err, types.ErrTagDocumentUnavailable))
	})
}
