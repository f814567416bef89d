package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
)

// maxRosterBytes bounds the upstream response body
const maxRosterBytes = 64 << 20

type client struct {
	url        string
	httpClient *http.Client
}

// Option configures the roster client
type Option func(*client)

// WithHTTPClient replaces the HTTP client used for upstream calls
func WithHTTPClient(c *http.Client) Option {
	return func(x *client) {
		x.httpClient = c
	}
}

// WithTimeout bounds each upstream call
func WithTimeout(d time.Duration) Option {
	return func(x *client) {
		x.httpClient = &http.Client{Timeout: d}
	}
}

// NewClient creates a roster client reading the JSON array served at url
func NewClient(url string, opts ...Option) interfaces.RosterClient {
	c := &client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRoster calls the upstream once and decodes the roster
func (c *client) FetchRoster(ctx context.Context) (*model.Roster, error) {
	logger := ctxlog.From(ctx)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create roster request",
			goerr.V("url", c.url), goerr.T(types.ErrTagRemoteUnavailable))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch roster",
			goerr.V("url", c.url), goerr.T(types.ErrTagRemoteUnavailable))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, goerr.New("unexpected roster status",
			goerr.V("url", c.url),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(snippet)),
			goerr.T(types.ErrTagRemoteUnavailable))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxRosterBytes))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read roster body",
			goerr.V("url", c.url), goerr.T(types.ErrTagRemoteUnavailable))
	}

	roster, err := Decode(raw)
	if err != nil {
		return nil, err
	}

	logger.Debug("Fetched roster",
		"url", c.url,
		"entries", len(roster.Entries),
		"bytes", len(raw),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return roster, nil
}

// FetchStudent fetches the roster and looks up id in it
func (c *client) FetchStudent(ctx context.Context, id string) (*model.Student, error) {
	roster, err := c.FetchRoster(ctx)
	if err != nil {
		return nil, err
	}
	return Lookup(roster, id)
}

// Decode parses an upstream roster payload. Entries without a student object
// are dropped.
func Decode(raw []byte) (*model.Roster, error) {
	var entries []*model.RosterEntry
	if err := json.Unmarshal(bytes.TrimSpace(raw), &entries); err != nil {
		return nil, goerr.Wrap(err, "failed to decode roster",
			goerr.V("bytes", len(raw)), goerr.T(types.ErrTagRemoteUnavailable))
	}

	roster := &model.Roster{
		Entries: make([]*model.RosterEntry, 0, len(entries)),
		Raw:     raw,
	}
	for _, e := range entries {
		if e == nil || e.Student == nil {
			continue
		}
		roster.Entries = append(roster.Entries, e)
	}
	return roster, nil
}

// Lookup finds id in roster or returns an error tagged ErrTagNotFound
func Lookup(roster *model.Roster, id string) (*model.Student, error) {
	student := roster.Find(id)
	if student == nil {
		return nil, goerr.New("student not found",
			goerr.V("id", id), goerr.T(types.ErrTagNotFound))
	}
	return student, nil
}
