package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creatorscout/creatorscout/internal/scout"
)

func i64(v int64) *int64 { return &v }

func TestEvaluate_SubscriberBounds(t *testing.T) {
	t.Parallel()

	filters := scout.DiscoveryFilters{MinSubscribers: i64(1000), MaxSubscribers: i64(100_000)}

	cases := []struct {
		name string
		subs *int64
		want Verdict
	}{
		{"below min", i64(999), VerdictFail},
		{"at min", i64(1000), VerdictPass},
		{"inside", i64(50_000), VerdictPass},
		{"at max", i64(100_000), VerdictPass},
		{"above max", i64(100_001), VerdictFail},
		{"unknown count", nil, VerdictUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ch := scout.Channel{ID: "UC1", Name: "Someone", Subscribers: tc.subs}
			require.Equal(t, tc.want, Evaluate(ch, filters))
		})
	}
}

func TestEvaluate_Country(t *testing.T) {
	t.Parallel()

	filters := scout.DiscoveryFilters{Country: "United States"}

	require.Equal(t, VerdictPass, Evaluate(scout.Channel{Country: "united states"}, filters))
	require.Equal(t, VerdictFail, Evaluate(scout.Channel{Country: "Canada"}, filters))
	// Missing country cannot satisfy a country filter.
	require.Equal(t, VerdictFail, Evaluate(scout.Channel{}, filters))
}

func TestIsMusicChannel(t *testing.T) {
	t.Parallel()

	require.True(t, IsMusicChannel("Aurora Records", "new single out now"))
	require.True(t, IsMusicChannel("SomeArtistVEVO", ""))
	require.False(t, IsMusicChannel("Dana Cooks", "weeknight recipes"))
	// Education context overrides the music signal.
	require.False(t, IsMusicChannel("Beat School", "music production tutorial channel, learn to mix"))
}

func TestIsBrandChannel(t *testing.T) {
	t.Parallel()

	require.True(t, IsBrandChannel("Acme Inc", "our team ships gadgets", i64(10_000)))
	require.False(t, IsBrandChannel("Dana Cooks", "i make weeknight recipes", i64(10_000)))

	// Very large audiences are presumed corporate unless the name reads
	// like a personal name or the description signals a creator.
	require.True(t, IsBrandChannel("Worldwide Gadget Review Network", "daily gadget coverage", i64(9_000_000)))
	require.False(t, IsBrandChannel("Dana Cooks", "daily gadget coverage", i64(9_000_000)))
	require.False(t, IsBrandChannel("Worldwide Gadget Review Network", "solo creator reviewing gadgets", i64(9_000_000)))
}

func TestEvaluate_MusicAndBrandFilters(t *testing.T) {
	t.Parallel()

	filters := scout.DiscoveryFilters{ExcludeMusic: true, ExcludeBrands: true}

	require.Equal(t, VerdictFail, Evaluate(scout.Channel{Name: "Aurora Records", Description: "record label"}, filters))
	require.Equal(t, VerdictFail, Evaluate(scout.Channel{Name: "Acme Corp", Description: "our company"}, filters))
	require.Equal(t, VerdictPass, Evaluate(scout.Channel{Name: "Dana Cooks", Description: "i make recipes"}, filters))
}
