package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// FlexString accepts a JSON string, number or boolean and keeps its textual form.
// The upstream roster is not consistent about quoting ids and sizes.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (x *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*x = ""
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*x = FlexString(s)
	case '{', '[':
		*x = ""
	default:
		// numbers and booleans are kept verbatim
		*x = FlexString(data)
	}
	return nil
}

// String returns the trimmed value
func (x FlexString) String() string {
	return strings.TrimSpace(string(x))
}

// Field is one form field of a submission. It is a document when URL is set.
type Field struct {
	Label   string     `json:"label,omitempty"`
	Value   FlexString `json:"value,omitempty"`
	URL     string     `json:"url,omitempty"`
	DocName string     `json:"doc_name,omitempty"`
	Size    FlexString `json:"size,omitempty"`
}

// UnmarshalJSON accepts either a field object or a bare scalar value.
func (x *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		type alias Field
		var v alias
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*x = Field(v)
		return nil
	}

	var v FlexString
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	*x = Field{Value: v}
	return nil
}

// IsDocument reports whether the field carries an uploaded file
func (x Field) IsDocument() bool {
	return strings.TrimSpace(x.URL) != ""
}

// Fields maps field keys (e.g. "field_20") to fields. An empty PHP array ("[]")
// decodes to an empty map; a non-empty array is keyed by index.
type Fields map[string]Field

// UnmarshalJSON implements json.Unmarshaler
func (x *Fields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*x = nil
		return nil
	}

	if data[0] == '[' {
		var list []Field
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		m := make(Fields, len(list))
		for i, f := range list {
			m[strconv.Itoa(i)] = f
		}
		*x = m
		return nil
	}

	m := map[string]Field{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*x = m
	return nil
}

// Student is one roster entry's student object.
type Student struct {
	UserID         FlexString `json:"user_id"`
	Email          string     `json:"email,omitempty"`
	RollNumber     FlexString `json:"roll_number,omitempty"`
	BatchInfo      string     `json:"batch_info,omitempty"`
	SubmissionDate string     `json:"submission_date,omitempty"`
	Fields         Fields     `json:"fields,omitempty"`
}

// Document is a document field together with its key
type Document struct {
	Key   string
	Field Field
}

// FieldValue returns the trimmed value of the field with the given key
func (x *Student) FieldValue(key string) string {
	if x == nil || x.Fields == nil {
		return ""
	}
	f, ok := x.Fields[key]
	if !ok {
		return ""
	}
	return f.Value.String()
}

// Documents returns the fields that carry a URL, ordered by field key with
// numeric suffixes compared as numbers (field_2 before field_10).
func (x *Student) Documents() []Document {
	if x == nil {
		return nil
	}

	var docs []Document
	for key, f := range x.Fields {
		if !f.IsDocument() {
			continue
		}
		docs = append(docs, Document{Key: key, Field: f})
	}

	sort.Slice(docs, func(i, j int) bool {
		return NaturalLess(docs[i].Key, docs[j].Key)
	})
	return docs
}

// RosterEntry is one element of the upstream roster array
type RosterEntry struct {
	Student *Student `json:"student"`
	Date    string   `json:"date,omitempty"`
}

// Roster is a decoded upstream response. Raw keeps the exact upstream bytes for
// passthrough responses.
type Roster struct {
	Entries []*RosterEntry
	Raw     []byte
}

// Students returns the student objects in roster order
func (x *Roster) Students() []*Student {
	if x == nil {
		return nil
	}
	students := make([]*Student, 0, len(x.Entries))
	for _, e := range x.Entries {
		students = append(students, e.Student)
	}
	return students
}

// Find returns the first student whose id equals id. Ids are compared as
// text, so a numeric upstream id 5 matches the request id "5".
func (x *Roster) Find(id string) *Student {
	if x == nil {
		return nil
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	for _, e := range x.Entries {
		if e.Student != nil && e.Student.UserID.String() == id {
			return e.Student
		}
	}

	// "5.0" style numeric ids
	if n, err := strconv.ParseFloat(id, 64); err == nil {
		for _, e := range x.Entries {
			if e.Student == nil {
				continue
			}
			if v, err := strconv.ParseFloat(e.Student.UserID.String(), 64); err == nil && v == n {
				return e.Student
			}
		}
	}
	return nil
}

// NaturalLess compares two keys treating digit runs as numbers
func NaturalLess(a, b string) bool {
	for a != "" && b != "" {
		ca, cb := a[0], b[0]
		if isDigit(ca) && isDigit(cb) {
			na, restA := splitDigits(a)
			nb, restB := splitDigits(b)
			ta := strings.TrimLeft(na, "0")
			tb := strings.TrimLeft(nb, "0")
			if len(ta) != len(tb) {
				return len(ta) < len(tb)
			}
			if ta != tb {
				return ta < tb
			}
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			a, b = restA, restB
			continue
		}
		if ca != cb {
			return ca < cb
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func splitDigits(s string) (string, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i], s[i:]
}
