package model

import (
	"regexp"
	"strings"
	"time"
)

// RosterQuery narrows the roster for listing and bulk download. Zero value
// matches everything.
type RosterQuery struct {
	Query string     // case-insensitive substring of name or email
	Batch string     // exact batch_info
	From  *time.Time // submission date lower bound, inclusive
	To    *time.Time // submission date upper bound, inclusive (whole day)

	Page    int // 1-based; 0 disables pagination
	PerPage int
}

// IsZero reports whether the query neither filters nor paginates
func (x *RosterQuery) IsZero() bool {
	return x == nil || (x.Query == "" && x.Batch == "" && x.From == nil && x.To == nil && x.Page == 0 && x.PerPage == 0)
}

// Match reports whether the student passes the filters. nameField is the key
// of the display name field, emailField the key of the form's email field.
func (x *RosterQuery) Match(s *Student, nameField, emailField string) bool {
	if x == nil {
		return true
	}
	if s == nil {
		return false
	}

	if q := strings.ToLower(strings.TrimSpace(x.Query)); q != "" {
		name := strings.ToLower(s.FieldValue(nameField))
		email := strings.ToLower(s.FieldValue(emailField))
		if email == "" {
			email = strings.ToLower(s.Email)
		}
		if !strings.Contains(name, q) && !strings.Contains(email, q) {
			return false
		}
	}

	if x.Batch != "" && s.BatchInfo != x.Batch {
		return false
	}

	if x.From != nil || x.To != nil {
		submitted, ok := ParseSubmissionDate(s.SubmissionDate)
		if !ok {
			return false
		}
		if x.From != nil && submitted.Before(*x.From) {
			return false
		}
		if x.To != nil && submitted.After(endOfDay(*x.To)) {
			return false
		}
	}

	return true
}

// Paginate returns the requested page of items and the total before slicing
func Paginate[T any](items []T, page, perPage int) ([]T, int) {
	total := len(items)
	if page <= 0 && perPage <= 0 {
		return items, total
	}
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	start := (page - 1) * perPage
	if start >= total {
		return []T{}, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return items[start:end], total
}

// DefaultPerPage is used when a page is requested without a page size
const DefaultPerPage = 20

var (
	dmyPattern      = regexp.MustCompile(`^\d{1,2}-\d{1,2}-\d{4}$`)
	dateTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}$`)
)

// ParseSubmissionDate parses the date formats seen in the upstream roster:
// DD-MM-YYYY, "YYYY-MM-DD HH:MM:SS", YYYY-MM-DD and RFC 3339.
func ParseSubmissionDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	switch {
	case dmyPattern.MatchString(s):
		if t, err := time.Parse("2-1-2006", s); err == nil {
			return t, true
		}
	case dateTimePattern.MatchString(s):
		s = strings.Join(strings.Fields(s), " ")
		if t, err := time.Parse(time.DateTime, s); err == nil {
			return t, true
		}
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
