package interfaces

import (
	"context"
	"io"

	"github.com/docpack/docpack/pkg/domain/model"
)

// StudentList is the result of a roster listing
type StudentList struct {
	// Raw is set when the query is empty; the upstream bytes are passed through.
	Raw     []byte
	Entries []*model.RosterEntry
	Total   int
}

// DownloadUseCase serves roster listings and plans/writes archives
type DownloadUseCase interface {
	ListStudents(ctx context.Context, query *model.RosterQuery) (*StudentList, error)
	GetStudent(ctx context.Context, id string) (*model.Student, error)

	// PlanAll and PlanStudent resolve everything that can fail fatally so the
	// caller can report errors before streaming.
	PlanAll(ctx context.Context, query *model.RosterQuery) (*model.ArchiveJob, error)
	PlanStudent(ctx context.Context, id string) (*model.ArchiveJob, error)
	// WriteArchive streams the job to w. The manifest is returned even on error.
	WriteArchive(ctx context.Context, job *model.ArchiveJob, w io.Writer) (*model.Manifest, error)

	InvalidateRoster(ctx context.Context) error
}

// AuthUseCase issues and verifies admin sessions
type AuthUseCase interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
	Verify(ctx context.Context, token string) (*model.Session, error)
}
