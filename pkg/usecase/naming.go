package usecase

import (
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/docpack/docpack/pkg/domain/model"
)

// DefaultDisplayField is the form field holding the student's name
const DefaultDisplayField = "field_20"

// DefaultEmailField is the form field holding the student's email
const DefaultEmailField = "field_21"

const fallbackEntryName = "document"

var whitespaceRun = regexp.MustCompile(`\s+`)

// FolderName resolves the archive folder of a student: the display field
// value, then email, then roll number, then "student-<userId>". The result is
// sanitized and never empty.
func FolderName(s *model.Student, displayField string) string {
	fallback := "student-unknown"
	if id := sanitizeName(s.UserID.String()); id != "" {
		fallback = "student-" + id
	}

	candidates := []string{
		s.FieldValue(displayField),
		s.Email,
		s.RollNumber.String(),
	}
	for _, c := range candidates {
		if name := sanitizeName(c); name != "" {
			return name
		}
	}
	return fallback
}

// EntryName returns the file name of a document inside its folder: doc_name
// when present, else the last segment of the URL path.
func EntryName(doc model.Document) string {
	if name := sanitizeName(doc.Field.DocName); name != "" {
		return name
	}
	if name := sanitizeName(urlBasename(doc.Field.URL)); name != "" {
		return name
	}
	return fallbackEntryName
}

func urlBasename(raw string) string {
	raw = strings.TrimSpace(raw)
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		p = raw[:i]
	}

	base := path.Base(p)
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// sanitizeName makes s safe as one zip path component. Whitespace runs become
// a single underscore; separators and control characters become underscores;
// ".." cannot survive and leading dots and underscores are dropped.
func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	s = whitespaceRun.ReplaceAllString(s, "_")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '/', r == '\\':
			return '_'
		case unicode.IsControl(r):
			return '_'
		}
		return r
	}, s)

	for strings.Contains(s, "..") {
		s = strings.ReplaceAll(s, "..", ".")
	}
	return strings.TrimLeft(s, "._")
}

// entryNames hands out unique archive paths. A repeated path gets a numeric
// suffix before its extension: a.pdf, a_2.pdf, a_3.pdf.
type entryNames struct {
	used map[string]struct{}
}

func newEntryNames() *entryNames {
	return &entryNames{used: make(map[string]struct{})}
}

func (x *entryNames) next(folder, file string) string {
	name := folder + "/" + file
	if _, ok := x.used[name]; !ok {
		x.used[name] = struct{}{}
		return name
	}

	ext := path.Ext(file)
	stem := strings.TrimSuffix(file, ext)
	for i := 2; ; i++ {
		candidate := folder + "/" + stem + "_" + strconv.Itoa(i) + ext
		if _, ok := x.used[candidate]; !ok {
			x.used[candidate] = struct{}{}
			return candidate
		}
	}
}
