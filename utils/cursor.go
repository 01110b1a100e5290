package utils

import (
	"encoding/base64"
	"encoding/json"
	"strings"
)

// EncodeCursor turns a backend last-evaluated key into an opaque continuation token.
// A nil or empty key means there are no more pages and yields nil.
func EncodeCursor(lastKey map[string]any) *string {
	if len(lastKey) == 0 {
		return nil
	}
	raw, err := json.Marshal(lastKey)
	if err != nil {
		return nil
	}
	s := base64.StdEncoding.EncodeToString(raw)
	return &s
}

// DecodeCursor reverses EncodeCursor. Anything it cannot read decodes to nil, which callers treat
// as "start from the beginning" rather than as an error.
func DecodeCursor(cursor string) map[string]any {
	// '+' arrives as ' ' when a caller forgets to escape the query parameter.
	cursor = strings.TrimSpace(strings.ReplaceAll(cursor, " ", "+"))
	if cursor == "" {
		return nil
	}
	var raw []byte
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(cursor); err == nil {
			raw = b
			break
		}
	}
	if raw == nil {
		return nil
	}
	var key map[string]any
	if err := json.Unmarshal(raw, &key); err != nil || len(key) == 0 {
		return nil
	}
	return key
}
