package synthesis

import "sort"

var formatContentTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"opus": "audio/ogg; codecs=opus",
}

func ValidFormat(format string) bool {
	_, ok := formatContentTypes[format]
	return ok
}

func ContentType(format string) (string, bool) {
	ct, ok := formatContentTypes[format]
	return ct, ok
}

// Formats returns the supported output formats in sorted order.
func Formats() []string {
	out := make([]string, 0, len(formatContentTypes))
	for f := range formatContentTypes {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
