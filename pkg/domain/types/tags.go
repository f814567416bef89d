package types

import "github.com/m-mizutani/goerr/v2"

// Error tags used to classify failures across layers. The HTTP controller maps
// them to status codes; everything untagged is an internal error.
var (
	// ErrTagRemoteUnavailable marks a failed upstream roster fetch.
	ErrTagRemoteUnavailable = goerr.NewTag("remote_unavailable")
	// ErrTagNotFound marks a student id missing from the roster.
	ErrTagNotFound = goerr.NewTag("not_found")
	// ErrTagDocumentUnavailable marks a single document that could not be fetched.
	ErrTagDocumentUnavailable = goerr.NewTag("document_unavailable")
	// ErrTagArchiveStream marks a failure while writing the zip to its sink.
	ErrTagArchiveStream = goerr.NewTag("archive_stream")
	// ErrTagUnauthorized marks a missing, expired or invalid admin session.
	ErrTagUnauthorized = goerr.NewTag("unauthorized")
	// ErrTagBadRequest marks malformed client input.
	ErrTagBadRequest = goerr.NewTag("bad_request")
)
