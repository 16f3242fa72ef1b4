package convert

import "strings"

// StripFences removes a markdown code fence wrapped around an entire LLM
// response. Models sometimes wrap their output in ```markdown ... ``` even
// when the prompt says not to.
//
// Only an exact prefix/suffix match with newline adjacency is stripped; nested
// or nonstandard fencing is left untouched. Responses with trailing whitespace
// before the closing fence stay wrapped.
func StripFences(s string) string {
	const (
		taggedOpen = "```markdown\n"
		bareOpen   = "```\n"
		closing    = "\n```"
	)

	var open string
	switch {
	case strings.HasPrefix(s, taggedOpen) && strings.HasSuffix(s, closing):
		open = taggedOpen
	case strings.HasPrefix(s, bareOpen) && strings.HasSuffix(s, closing):
		open = bareOpen
	default:
		return s
	}

	// A prefix and suffix sharing characters collapse to an empty body.
	if len(s)-len(closing) < len(open) {
		return ""
	}
	return s[len(open) : len(s)-len(closing)]
}
