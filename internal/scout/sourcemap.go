package scout

import "strings"

// SourceMap is an insertion-ordered email -> source mapping with
// first-writer-wins semantics. The first surface to produce a given email
// keeps its attribution; later inserts of the same email are ignored.
type SourceMap struct {
	order   []string
	sources map[string]string
}

// NewSourceMap returns an empty SourceMap.
func NewSourceMap() *SourceMap {
	return &SourceMap{sources: make(map[string]string)}
}

// InsertIfAbsent records the email under source unless the email is already
// attributed. It reports whether the entry was inserted. Emails are
// normalized to lowercase before comparison.
func (m *SourceMap) InsertIfAbsent(email, source string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	if _, ok := m.sources[email]; ok {
		return false
	}
	m.sources[email] = source
	m.order = append(m.order, email)
	return true
}

// InsertAll inserts every email under the same source, preserving the order
// of the input slice. Returns the number of new entries.
func (m *SourceMap) InsertAll(emails []string, source string) int {
	inserted := 0
	for _, email := range emails {
		if m.InsertIfAbsent(email, source) {
			inserted++
		}
	}
	return inserted
}

// Emails returns the emails in insertion order.
func (m *SourceMap) Emails() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Sources returns a copy of the email -> source mapping.
func (m *SourceMap) Sources() map[string]string {
	out := make(map[string]string, len(m.sources))
	for email, source := range m.sources {
		out[email] = source
	}
	return out
}

// Source returns the attribution for email, if present.
func (m *SourceMap) Source(email string) (string, bool) {
	source, ok := m.sources[strings.ToLower(email)]
	return source, ok
}

// Len returns the number of attributed emails.
func (m *SourceMap) Len() int {
	return len(m.order)
}
