package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var nonFinite = [][]byte{[]byte("-Infinity"), []byte("Infinity"), []byte("NaN")}

// sanitizeJSON replaces bare NaN and Infinity tokens with null. The ledger
// endpoints serialize missing numbers that way. Tokens inside strings are
// left alone.
func sanitizeJSON(b []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(b))

	inString := false
	escaped := false
	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}

		replaced := false
		for _, token := range nonFinite {
			if bytes.HasPrefix(b[i:], token) {
				out.WriteString("null")
				i += len(token) - 1
				replaced = true
				break
			}
		}
		if !replaced {
			out.WriteByte(c)
		}
	}
	return out.Bytes()
}

// decode unmarshals a response body, mapping any shape mismatch to
// ErrMalformedPayload.
func decode(body []byte, target any) error {
	if err := json.Unmarshal(sanitizeJSON(body), target); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(b []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected key token %v", tok)
		}
		keys = append(keys, key)

		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
