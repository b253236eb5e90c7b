// Package sse decodes the text event stream exposed by the music player.
//
// The wire format is a simplified server-sent-events framing: events are
// groups of consecutive non-blank lines separated by a blank line, each line
// carrying an "event:" or "data:" prefix. Payloads are single-line; the
// player never sends multi-line data fields.
package sse

import (
	"encoding/json"
	"strings"
)

// Record is one decoded event: a type naming the field that changed and its
// payload. A zero Record means the block carried no recognizable lines and
// must be treated as a no-op by the caller.
type Record struct {
	Type string
	Data string
}

// IsZero reports whether the record carries neither a type nor a payload.
func (r Record) IsZero() bool {
	return r.Type == "" && r.Data == ""
}

// ParseBlock decodes one event block into a Record.
//
// Lines starting with "event:" set the type, lines starting with "data:" set
// the payload; in both cases the remainder is whitespace-trimmed. When the
// same prefix repeats, the last occurrence wins. Lines with any other prefix
// are ignored.
//
// Payloads that look like JSON (first character `"` or `{`) are decoded:
// quoted strings are unquoted, objects are validated and kept in their raw
// form. Decode failures are silently absorbed and the raw trimmed payload is
// kept, so ParseBlock never fails.
func ParseBlock(lines []string) Record {
	var rec Record
	for _, line := range lines {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event:"):
			rec.Type = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			rec.Data = decodePayload(strings.TrimSpace(line[len("data:"):]))
		}
	}
	return rec
}

// decodePayload unwraps JSON-encoded payloads and passes everything else
// through unchanged.
func decodePayload(data string) string {
	if data == "" {
		return data
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal([]byte(data), &s); err == nil {
			return s
		}
	case '{':
		// Objects are validated but kept verbatim: the state store only
		// consumes scalar payloads, and an opaque object is stored as-is.
		if json.Valid([]byte(data)) {
			return data
		}
	}
	return data
}
