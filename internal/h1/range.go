package h1

import (
	"strconv"
	"strings"
)

// ContentRange is a decoded Range header window. Start is always present;
// Length is valid only when HasLength is true (an open-ended range runs to
// the end of the resource).
type ContentRange struct {
	Start     int64
	Length    int64
	HasLength bool
}

// DecodeContentRange parses a "bytes=<start>-<end>" header value. Both ends
// are optional: a missing start means 0, a missing end means open-ended.
// end == 0 and start > end are rejected. Clamping against the resource size
// is the caller's job.
func DecodeContentRange(s string) (ContentRange, bool) {
	if !strings.HasPrefix(s, "bytes=") {
		return ContentRange{}, false
	}
	spec := s[len("bytes="):]
	dash := strings.IndexByte(spec, '-')
	if dash == -1 {
		return ContentRange{}, false
	}
	startStr := spec[:dash]
	endStr := spec[dash+1:]

	var start int64
	if startStr != "" {
		v, err := strconv.ParseInt(startStr, 10, 64)
		if err != nil || v < 0 {
			return ContentRange{}, false
		}
		start = v
	}

	if endStr == "" {
		return ContentRange{Start: start}, true
	}

	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return ContentRange{}, false
	}
	if end == 0 || start > end {
		return ContentRange{}, false
	}
	return ContentRange{Start: start, Length: end - start + 1, HasLength: true}, true
}
