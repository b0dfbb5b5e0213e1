package parser

import (
	"fmt"
	"regexp"
)

// UpscaleImageURL rewrites the h=<from> and w=<from> query tokens to <to>.
// Each token is handled on its own; a missing token is left missing.
func UpscaleImageURL(raw string, from, to int) string {
	out := raw
	for _, key := range []string{"h", "w"} {
		pattern := regexp.MustCompile(fmt.Sprintf(`([?&])%s=%d(&|#|$)`, key, from))
		out = pattern.ReplaceAllString(out, fmt.Sprintf("${1}%s=%d${2}", key, to))
	}
	return out
}
