package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/types"
)

type fetcher struct {
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures the fetcher
type Option func(*fetcher)

// WithHTTPClient replaces the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(x *fetcher) {
		x.httpClient = c
	}
}

// WithTimeout bounds one document fetch including the body read. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(x *fetcher) {
		x.timeout = d
	}
}

// New creates a FileFetcher. No retries are made.
func New(opts ...Option) interfaces.FileFetcher {
	f := &fetcher{
		httpClient: &http.Client{},
		timeout:    60 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open issues a GET to rawURL and returns the live body
func (f *fetcher) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid document url",
			goerr.V("url", rawURL), goerr.T(types.ErrTagDocumentUnavailable))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, goerr.New("unsupported document url scheme",
			goerr.V("url", rawURL), goerr.V("scheme", u.Scheme), goerr.T(types.ErrTagDocumentUnavailable))
	}

	cancel := context.CancelFunc(func() {})
	if f.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, goerr.Wrap(err, "failed to create document request",
			goerr.V("url", rawURL), goerr.T(types.ErrTagDocumentUnavailable))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, goerr.Wrap(err, "failed to fetch document",
			goerr.V("url", rawURL), goerr.T(types.ErrTagDocumentUnavailable))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		cancel()
		return nil, goerr.New("unexpected document status",
			goerr.V("url", rawURL), goerr.V("status", resp.StatusCode), goerr.T(types.ErrTagDocumentUnavailable))
	}

	ctxlog.From(ctx).Debug("Opened document",
		"url", rawURL,
		"content_length", resp.ContentLength,
	)

	return &body{ReadCloser: resp.Body, cancel: cancel}, nil
}

// body releases the per-fetch timeout when the caller is done reading
type body struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *body) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}
