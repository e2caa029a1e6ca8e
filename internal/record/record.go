// Package record defines the constraints every row flowing through the query
// engine must satisfy: a stable identity and, optionally, a last-modification
// timestamp used for last-write-wins merging.
package record

import "time"

// Identified is the minimal contract for a mergeable record.
type Identified interface {
	// RecordID returns the stable identity key (usually the row id).
	RecordID() string
}

// Timestamped is optionally implemented by records that carry a
// last-modification timestamp. The value is ISO-8601 (RFC 3339); an empty
// string means the timestamp is unknown.
type Timestamped interface {
	LastUpdated() string
}

// IdentityFunc overrides identity extraction for a single query. A nil
// IdentityFunc falls back to RecordID.
type IdentityFunc[R Identified] func(R) string

// IdentityOf resolves the identity of r, honoring a per-query override.
func IdentityOf[R Identified](r R, fn IdentityFunc[R]) string {
	if fn != nil {
		return fn(r)
	}
	return r.RecordID()
}

// timeLayouts are tried in order when parsing record timestamps. Rows written
// by different devices are not consistent about sub-second precision or the
// trailing zone designator.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 timestamp. ok is false for empty or
// unparseable input.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Newer reports whether candidate carries a strictly greater timestamp than
// current. Missing or unparseable timestamps on either side report false, so
// the caller keeps what it already has on ties and on ambiguity.
func Newer(current, candidate string) bool {
	ct, ok := ParseTime(current)
	if !ok {
		return false
	}
	nt, ok := ParseTime(candidate)
	if !ok {
		return false
	}
	return nt.After(ct)
}

// UpdatedAtOf returns the raw timestamp of r if it is Timestamped, else "".
func UpdatedAtOf(r any) string {
	if ts, ok := r.(Timestamped); ok {
		return ts.LastUpdated()
	}
	return ""
}
