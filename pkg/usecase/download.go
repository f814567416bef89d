package usecase

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/docpack/docpack/pkg/domain/interfaces"
	"github.com/docpack/docpack/pkg/domain/model"
	"github.com/docpack/docpack/pkg/domain/types"
	"github.com/docpack/docpack/pkg/utils/metrics"
)

// AllStudentsFilename is the attachment name of the bulk archive
const AllStudentsFilename = "allStudentsDocs.zip"

// Download implements interfaces.DownloadUseCase
type Download struct {
	roster       interfaces.RosterClient
	archiver     *Archiver
	metrics      *metrics.Metrics
	displayField string
	emailField   string
	bulkLevel    int
	singleLevel  int
	now          func() time.Time
}

var _ interfaces.DownloadUseCase = (*Download)(nil)

// DownloadOption configures Download
type DownloadOption func(*Download)

// WithDisplayField sets the field used for folder names and name search
func WithDisplayField(key string) DownloadOption {
	return func(x *Download) {
		x.displayField = key
	}
}

// WithEmailField sets the form field used for email search
func WithEmailField(key string) DownloadOption {
	return func(x *Download) {
		x.emailField = key
	}
}

// WithLevels sets the deflate level of bulk and single-student archives
func WithLevels(bulk, single int) DownloadOption {
	return func(x *Download) {
		x.bulkLevel = bulk
		x.singleLevel = single
	}
}

// WithDownloadMetrics records upstream roster fetches
func WithDownloadMetrics(m *metrics.Metrics) DownloadOption {
	return func(x *Download) {
		x.metrics = m
	}
}

// WithNow overrides time.Now for archive timestamps
func WithNow(now func() time.Time) DownloadOption {
	return func(x *Download) {
		x.now = now
	}
}

// NewDownload creates the download use case
func NewDownload(roster interfaces.RosterClient, archiver *Archiver, opts ...DownloadOption) *Download {
	d := &Download{
		roster:       roster,
		archiver:     archiver,
		displayField: DefaultDisplayField,
		emailField:   DefaultEmailField,
		bulkLevel:    9,
		singleLevel:  -1,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (x *Download) fetchRoster(ctx context.Context) (*model.Roster, error) {
	roster, err := x.roster.FetchRoster(ctx)
	x.metrics.RosterFetched(err)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to fetch roster")
	}
	return roster, nil
}

// ListStudents returns the raw roster for an empty query, otherwise the
// filtered and paginated entries.
func (x *Download) ListStudents(ctx context.Context, query *model.RosterQuery) (*interfaces.StudentList, error) {
	roster, err := x.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}

	if query.IsZero() {
		return &interfaces.StudentList{
			Raw:     roster.Raw,
			Entries: roster.Entries,
			Total:   len(roster.Entries),
		}, nil
	}

	matched := []*model.RosterEntry{}
	for _, e := range roster.Entries {
		if query.Match(e.Student, x.displayField, x.emailField) {
			matched = append(matched, e)
		}
	}

	page, total := model.Paginate(matched, query.Page, query.PerPage)
	return &interfaces.StudentList{Entries: page, Total: total}, nil
}

// GetStudent returns one student by id
func (x *Download) GetStudent(ctx context.Context, id string) (*model.Student, error) {
	roster, err := x.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}

	s := roster.Find(id)
	if s == nil {
		return nil, goerr.New("student not found",
			goerr.V("student_id", id), goerr.T(types.ErrTagNotFound))
	}
	return s, nil
}

// PlanAll plans the bulk archive of every student matching query. Pagination
// in query is ignored.
func (x *Download) PlanAll(ctx context.Context, query *model.RosterQuery) (*model.ArchiveJob, error) {
	roster, err := x.fetchRoster(ctx)
	if err != nil {
		return nil, err
	}

	var students []*model.Student
	for _, s := range roster.Students() {
		if s == nil {
			continue
		}
		if query != nil && !query.Match(s, x.displayField, x.emailField) {
			continue
		}
		students = append(students, s)
	}

	job := x.newJob(model.ArchiveKindAll, AllStudentsFilename, students, x.bulkLevel)
	ctxlog.From(ctx).Info("Planned bulk archive",
		"archive_id", job.ID,
		"students", len(students),
		"documents", job.DocumentCount(),
	)
	return job, nil
}

// PlanStudent plans the archive of one student
func (x *Download) PlanStudent(ctx context.Context, id string) (*model.ArchiveJob, error) {
	s, err := x.GetStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	filename := FolderName(s, x.displayField) + ".zip"
	job := x.newJob(model.ArchiveKindStudent, filename, []*model.Student{s}, x.singleLevel)
	ctxlog.From(ctx).Info("Planned student archive",
		"archive_id", job.ID,
		"student_id", s.UserID.String(),
		"documents", job.DocumentCount(),
	)
	return job, nil
}

func (x *Download) newJob(kind, filename string, students []*model.Student, level int) *model.ArchiveJob {
	return &model.ArchiveJob{
		ID:        uuid.NewString(),
		Kind:      kind,
		Filename:  filename,
		Students:  students,
		Level:     level,
		CreatedAt: x.now().UTC().Truncate(time.Second),
	}
}

// WriteArchive streams a planned job
func (x *Download) WriteArchive(ctx context.Context, job *model.ArchiveJob, w io.Writer) (*model.Manifest, error) {
	return x.archiver.Write(ctx, job, w)
}

// InvalidateRoster drops the cached roster. Without a cache it is a no-op.
func (x *Download) InvalidateRoster(ctx context.Context) error {
	inv, ok := x.roster.(interfaces.RosterInvalidator)
	if !ok {
		ctxlog.From(ctx).Debug("Roster cache is disabled, nothing to invalidate")
		return nil
	}
	return inv.Invalidate(ctx)
}
