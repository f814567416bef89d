package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/docpack/docpack/pkg/domain/model"
)

// RosterClient fetches the student roster from the upstream API
type RosterClient interface {
	// FetchRoster returns the whole roster. Failures carry ErrTagRemoteUnavailable.
	FetchRoster(ctx context.Context) (*model.Roster, error)
	// FetchStudent returns one student by id. A missing id carries ErrTagNotFound.
	FetchStudent(ctx context.Context, id string) (*model.Student, error)
}

// RosterInvalidator drops any cached roster
type RosterInvalidator interface {
	Invalidate(ctx context.Context) error
}

// FileFetcher opens remote documents
type FileFetcher interface {
	// Open returns the live response body of url. Failures carry
	// ErrTagDocumentUnavailable and must be treated as "skip".
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// RosterCache stores raw roster payloads
type RosterCache interface {
	// Get returns nil without error on a miss
	Get(ctx context.Context, key string) (*model.CacheItem, error)
	Set(ctx context.Context, key string, item *model.CacheItem, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
