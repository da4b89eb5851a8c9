package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Site identifies the originating website of a submission.
type Site struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Submission is the inbound webhook envelope carrying a single lead form
// submission. Every member is optional on the wire; ApplyDefaults fills the
// gaps before the submission is relayed.
type Submission struct {
	Site      Site   `json:"site"`
	FormName  string `json:"form_name"`
	Data      Fields `json:"data"`
	CreatedAt string `json:"created_at"`
}

// ParseSubmission decodes a request body into a Submission. An empty body is
// equivalent to an empty JSON object. In lenient mode a malformed body also
// collapses to the zero Submission so delivery stays best-effort; strict mode
// surfaces the decode error instead.
func ParseSubmission(body []byte, strict bool) (*Submission, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Submission{}, nil
	}

	var sub Submission
	if err := json.Unmarshal(trimmed, &sub); err != nil {
		if strict {
			return nil, fmt.Errorf("decode submission: %w", err)
		}
		return &Submission{}, nil
	}
	return &sub, nil
}

// ApplyDefaults fills absent envelope members: the configured form name, the
// receipt time and the configured site origin.
func (s *Submission) ApplyDefaults(now time.Time, siteOrigin, formName string) {
	if strings.TrimSpace(s.FormName) == "" {
		s.FormName = formName
	}
	if strings.TrimSpace(s.CreatedAt) == "" {
		s.CreatedAt = now.UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(s.Site.URL) == "" {
		s.Site.URL = siteOrigin
	}
}

// Fields is an ordered mapping from field name to field value. Decoding
// preserves the key order of the JSON document so the rendered email lists
// fields the way the form client sent them, and every value is coerced to a
// string at the boundary regardless of its JSON type.
type Fields struct {
	keys   []string
	values map[string]string
}

// Set stores a value, appending the key on first sight. Repeated keys keep
// their original position.
func (f *Fields) Set(key, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, exists := f.values[key]; !exists {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key and whether it was present.
func (f *Fields) Get(key string) (string, bool) {
	value, ok := f.values[key]
	return value, ok
}

// Len reports the number of distinct keys.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Keys returns the field names in the order they were received.
func (f *Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

// UnmarshalJSON decodes a JSON object token by token so document order
// survives. JSON null yields an empty mapping.
func (f *Fields) UnmarshalJSON(data []byte) error {
	f.keys = nil
	f.values = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("fields: expected object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: unexpected key token %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		f.Set(key, coerceString(raw))
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// coerceString flattens an arbitrary JSON value to its string form: strings
// verbatim, numbers and booleans as their literal text, null as the empty
// string, and composite values as compact JSON.
func coerceString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
		return string(trimmed)
	case 'n':
		return ""
	case '{', '[':
		var buf bytes.Buffer
		if err := json.Compact(&buf, trimmed); err == nil {
			return buf.String()
		}
		return string(trimmed)
	default:
		return string(trimmed)
	}
}
