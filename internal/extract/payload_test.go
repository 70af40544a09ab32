package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creatorscout/creatorscout/internal/scout"
)

const searchDoc = `<html><script>
ytcfg.set({"INNERTUBE_API_KEY":"AIzaSyTESTKEY","INNERTUBE_CONTEXT":{"client":{"clientName":"WEB","clientVersion":"2.2024"}}});
</script><script>
var ytInitialData = {"contents":{"sectionListRenderer":{"contents":[
{"itemSectionRenderer":{"contents":[
  {"channelRenderer":{"channelId":"UCaaa","title":{"simpleText":"Dana Cooks"},
    "navigationEndpoint":{"browseEndpoint":{"canonicalBaseUrl":"/@danacooks"}},
    "descriptionSnippet":{"runs":[{"text":"Weeknight "},{"text":"recipes"}]},
    "subscriberCountText":{"simpleText":"1.2M subscribers"},
    "videoCountText":{"runs":[{"text":"348"},{"text":" videos"}]},
    "thumbnail":{"thumbnails":[{"url":"//yt3.ggpht.com/small"},{"url":"//yt3.ggpht.com/large"}]}}},
  {"channelRenderer":{"channelId":"UCbbb","title":{"simpleText":"Brand Kitchen"}}}
]}},
{"continuationItemRenderer":{"continuationEndpoint":{"continuationCommand":{"token":"CONT_TOKEN_1","request":"CONTINUATION_REQUEST_TYPE_SEARCH"}}}}
]}}};
</script></html>`

func TestParseSearchDocument(t *testing.T) {
	t.Parallel()

	payload, err := ParseSearchDocument(searchDoc)
	require.NoError(t, err)

	require.Equal(t, "AIzaSyTESTKEY", payload.APIKey)
	require.Contains(t, payload.RequestContext, `"clientName":"WEB"`)
	require.Equal(t, "CONT_TOKEN_1", payload.Continuation)

	require.Len(t, payload.Results, 2)
	first := payload.Results[0]
	require.Equal(t, "UCaaa", first.ID)
	require.Equal(t, "Dana Cooks", first.Name)
	require.Equal(t, "https://www.youtube.com/@danacooks", first.CanonicalURL)
	require.Equal(t, "Weeknight recipes", first.Description)
	require.Equal(t, "https://yt3.ggpht.com/large", first.ThumbnailURL)
	require.NotNil(t, first.Subscribers)
	require.EqualValues(t, 1_200_000, *first.Subscribers)
	require.NotNil(t, first.Videos)
	require.EqualValues(t, 348, *first.Videos)

	second := payload.Results[1]
	require.Equal(t, "UCbbb", second.ID)
	require.Equal(t, "https://www.youtube.com/channel/UCbbb", second.CanonicalURL)
}

func TestParseSearchDocument_MissingMarkersIsFatal(t *testing.T) {
	t.Parallel()

	_, err := ParseSearchDocument("<html>nothing embedded here</html>")
	require.ErrorIs(t, err, scout.ErrNoResults)

	_, err = ParseSearchDocument(`{"INNERTUBE_API_KEY":"k"} but no context`)
	require.ErrorIs(t, err, scout.ErrNoResults)
}

func TestParseContinuationResponse(t *testing.T) {
	t.Parallel()

	body := `{"onResponseReceivedCommands":[{"appendContinuationItemsAction":{"continuationItems":[
{"itemSectionRenderer":{"contents":[{"channelRenderer":{"channelId":"UCccc","title":{"simpleText":"Third"}}}]}},
{"continuationItemRenderer":{"continuationEndpoint":{"continuationCommand":{"token":"CONT_TOKEN_2"}}}}
]}}]}`

	channels, token, err := ParseContinuationResponse(body)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Equal(t, "UCccc", channels[0].ID)
	require.Equal(t, "CONT_TOKEN_2", token)
}

func TestParseContinuationResponse_TokenStreamEnds(t *testing.T) {
	t.Parallel()

	body := `{"onResponseReceivedCommands":[{"appendContinuationItemsAction":{"continuationItems":[
{"itemSectionRenderer":{"contents":[{"channelRenderer":{"channelId":"UCddd","title":{"simpleText":"Last"}}}]}}
]}}]}`

	channels, token, err := ParseContinuationResponse(body)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	require.Empty(t, token)
}

func TestParseContinuationResponse_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, _, err := ParseContinuationResponse("<html>bot check</html>")
	require.ErrorIs(t, err, scout.ErrNoResults)
}
