package scout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSourceMap_FirstSourceWins(t *testing.T) {
	t.Parallel()

	m := NewSourceMap()
	require.True(t, m.InsertIfAbsent("hello@example.org", "self_about"))
	require.False(t, m.InsertIfAbsent("hello@example.org", "website"))

	source, ok := m.Source("hello@example.org")
	require.True(t, ok)
	require.Equal(t, "self_about", source)
}

func TestSourceMap_NormalizesCase(t *testing.T) {
	t.Parallel()

	m := NewSourceMap()
	require.True(t, m.InsertIfAbsent("Hello@Example.Org", "instagram"))
	require.False(t, m.InsertIfAbsent("hello@example.org", "linkedin"))
	require.Equal(t, []string{"hello@example.org"}, m.Emails())
}

func TestSourceMap_PreservesInsertionOrder(t *testing.T) {
	t.Parallel()

	m := NewSourceMap()
	m.InsertAll([]string{"a@a.io", "b@b.io"}, "self_about")
	m.InsertAll([]string{"b@b.io", "c@c.io"}, "website")

	require.Equal(t, []string{"a@a.io", "b@b.io", "c@c.io"}, m.Emails())
	require.Equal(t, map[string]string{
		"a@a.io": "self_about",
		"b@b.io": "self_about",
		"c@c.io": "website",
	}, m.Sources())
}

func TestSourceMap_BijectiveCoverage(t *testing.T) {
	t.Parallel()

	m := NewSourceMap()
	m.InsertAll([]string{"x@x.io", "", "y@y.io"}, "self_items")

	emails := m.Emails()
	sources := m.Sources()
	require.Len(t, sources, len(emails))
	for _, email := range emails {
		_, ok := sources[email]
		require.True(t, ok, "email %q missing from source map", email)
	}
}
