package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/creatorscout/creatorscout/internal/scout"
)

// Marker substrings keying the structural extraction of the discovery
// payload. The raw results document embeds an API key, a request context
// object, and the initial result data as inline JSON; everything below is
// the single adapter isolating that wire contract (format drift is a
// one-place fix).
const (
	apiKeyMarker     = `"INNERTUBE_API_KEY"`
	reqContextMarker = `"INNERTUBE_CONTEXT"`
)

var initialDataMarkers = []string{
	`var ytInitialData =`,
	`window["ytInitialData"] =`,
	`ytInitialData =`,
}

// ParseSearchDocument extracts the SearchPayload from the rendered results
// document. Failure to locate the payload is fatal for the owning
// discovery session and surfaces as scout.ErrNoResults.
func ParseSearchDocument(doc string) (scout.SearchPayload, error) {
	apiKey, ok := quotedValueAfter(doc, apiKeyMarker)
	if !ok {
		return scout.SearchPayload{}, fmt.Errorf("%w: api key marker missing", scout.ErrNoResults)
	}
	reqContext, ok := balancedJSONAfter(doc, reqContextMarker)
	if !ok {
		return scout.SearchPayload{}, fmt.Errorf("%w: request context marker missing", scout.ErrNoResults)
	}

	var dataBlock string
	for _, marker := range initialDataMarkers {
		if block, found := balancedJSONAfter(doc, marker); found {
			dataBlock = block
			break
		}
	}
	if dataBlock == "" {
		return scout.SearchPayload{}, fmt.Errorf("%w: initial data marker missing", scout.ErrNoResults)
	}

	channels, continuation, err := parseResultData(dataBlock)
	if err != nil {
		return scout.SearchPayload{}, err
	}
	return scout.SearchPayload{
		APIKey:         apiKey,
		RequestContext: reqContext,
		Results:        channels,
		Continuation:   continuation,
	}, nil
}

// ParseContinuationResponse extracts the next result page from a raw
// continuation API response body.
func ParseContinuationResponse(body string) ([]scout.Channel, string, error) {
	return parseResultData(body)
}

func parseResultData(block string) ([]scout.Channel, string, error) {
	var root any
	if err := json.Unmarshal([]byte(block), &root); err != nil {
		return nil, "", fmt.Errorf("%w: result payload is not valid JSON", scout.ErrNoResults)
	}

	var channels []scout.Channel
	continuation := ""
	walkJSON(root, func(node map[string]any) {
		if ch, ok := channelFromRenderer(node); ok {
			channels = append(channels, ch)
			return
		}
		if continuation == "" {
			if cmd, ok := node["continuationCommand"].(map[string]any); ok {
				if token, ok := cmd["token"].(string); ok {
					continuation = token
				}
			}
		}
	})
	return channels, continuation, nil
}

// walkJSON visits every JSON object in the tree depth-first, in document
// order, which preserves the feed's result ordering.
func walkJSON(node any, visit func(map[string]any)) {
	switch v := node.(type) {
	case map[string]any:
		visit(v)
		for _, key := range orderedKeys(v) {
			walkJSON(v[key], visit)
		}
	case []any:
		for _, item := range v {
			walkJSON(item, visit)
		}
	}
}

// orderedKeys returns map keys with the renderer content keys first so
// result items are visited before continuation tokens.
func orderedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k == "contents" || k == "items" {
			keys = append([]string{k}, keys...)
			continue
		}
		keys = append(keys, k)
	}
	return keys
}

func channelFromRenderer(node map[string]any) (scout.Channel, bool) {
	id, _ := node["channelId"].(string)
	if id == "" {
		return scout.Channel{}, false
	}
	title := textOf(node["title"])
	if title == "" {
		return scout.Channel{}, false
	}

	ch := scout.Channel{
		ID:           id,
		Name:         title,
		CanonicalURL: canonicalURLOf(node, id),
		Description:  textOf(node["descriptionSnippet"]),
		ThumbnailURL: thumbnailOf(node),
	}
	if subs := textOf(node["subscriberCountText"]); subs != "" {
		if v := scanCountText(subs); v != nil {
			ch.Subscribers = v
		}
	}
	if vids := textOf(node["videoCountText"]); vids != "" {
		if v := scanCountText(vids); v != nil {
			ch.Videos = v
		}
	}
	return ch, true
}

func canonicalURLOf(node map[string]any, id string) string {
	if nav, ok := node["navigationEndpoint"].(map[string]any); ok {
		if browse, ok := nav["browseEndpoint"].(map[string]any); ok {
			if base, ok := browse["canonicalBaseUrl"].(string); ok && base != "" {
				return "https://www.youtube.com" + base
			}
		}
	}
	return "https://www.youtube.com/channel/" + id
}

func thumbnailOf(node map[string]any) string {
	thumb, ok := node["thumbnail"].(map[string]any)
	if !ok {
		return ""
	}
	list, ok := thumb["thumbnails"].([]any)
	if !ok || len(list) == 0 {
		return ""
	}
	last, ok := list[len(list)-1].(map[string]any)
	if !ok {
		return ""
	}
	u, _ := last["url"].(string)
	if strings.HasPrefix(u, "//") {
		u = "https:" + u
	}
	return u
}

// textOf flattens the platform's text node shapes: either a simpleText
// string or a runs array of text fragments.
func textOf(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	if s, ok := m["simpleText"].(string); ok {
		return s
	}
	runs, ok := m["runs"].([]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, r := range runs {
		if rm, ok := r.(map[string]any); ok {
			if t, ok := rm["text"].(string); ok {
				b.WriteString(t)
			}
		}
	}
	return b.String()
}

// scanCountText parses "1.23K subscribers" style labels.
func scanCountText(label string) *int64 {
	fields := strings.Fields(label)
	if len(fields) == 0 {
		return nil
	}
	token := fields[0]
	suffix := ""
	if n := len(token); n > 0 {
		switch token[n-1] {
		case 'K', 'M', 'B', 'k', 'm', 'b':
			suffix = string(token[n-1])
			token = token[:n-1]
		}
	}
	if v, ok := parseNumericToken(token, suffix); ok && v >= 0 {
		return &v
	}
	return nil
}

// quotedValueAfter returns the first quoted string following marker and a
// colon, e.g. `"KEY":"value"`.
func quotedValueAfter(doc, marker string) (string, bool) {
	idx := strings.Index(doc, marker)
	if idx < 0 {
		return "", false
	}
	rest := doc[idx+len(marker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return "", false
	}
	rest = rest[colon+1:]
	open := strings.Index(rest, `"`)
	if open < 0 {
		return "", false
	}
	rest = rest[open+1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// balancedJSONAfter returns the balanced JSON object starting at the first
// '{' after marker, honoring strings and escapes.
func balancedJSONAfter(doc, marker string) (string, bool) {
	idx := strings.Index(doc, marker)
	if idx < 0 {
		return "", false
	}
	rest := doc[idx+len(marker):]
	start := strings.Index(rest, "{")
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return rest[start : i+1], true
			}
		}
	}
	return "", false
}
