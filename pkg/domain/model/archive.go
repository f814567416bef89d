package model

import "time"

// ArchiveJob is a planned archive: everything needed to stream it, resolved
// before any response byte is written.
type ArchiveJob struct {
	ID        string
	Kind      string // ArchiveKindAll or ArchiveKindStudent
	Filename  string
	Students  []*Student
	Level     int // deflate level
	CreatedAt time.Time
}

// Archive kinds, used as a metrics label
const (
	ArchiveKindAll     = "all"
	ArchiveKindStudent = "student"
)

// DocumentCount returns the number of documents the job will attempt
func (x *ArchiveJob) DocumentCount() int {
	n := 0
	for _, s := range x.Students {
		n += len(s.Documents())
	}
	return n
}

// Manifest summarizes a written archive
type Manifest struct {
	ArchiveID string            `toml:"archive_id" json:"archive_id"`
	Filename  string            `toml:"filename" json:"filename"`
	CreatedAt time.Time         `toml:"created_at" json:"created_at"`
	Students  int               `toml:"students" json:"students"`
	Entries   []ManifestEntry   `toml:"entries" json:"entries"`
	Skipped   []SkippedDocument `toml:"skipped" json:"skipped"`
}

// ManifestEntry is one file written into the archive
type ManifestEntry struct {
	Name string `toml:"name" json:"name"`
	URL  string `toml:"url" json:"url"`
	Size int64  `toml:"size" json:"size"`
}

// SkippedDocument is a document left out of the archive
type SkippedDocument struct {
	Student string `toml:"student" json:"student"`
	Field   string `toml:"field" json:"field"`
	URL     string `toml:"url" json:"url"`
	Reason  string `toml:"reason" json:"reason"`
}

// ManifestName is the archive-root file name of the embedded manifest
const ManifestName = "_manifest.toml"
