// ABOUTME: Record codec converting leads to/from their stored string form
// ABOUTME: Base64 over percent-escaped JSON, with two legacy fallback paths
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/harperreed/leadbatch/models"
)

// RecordDecodeError reports one entry that could not be reversed into a
// lead. The raw string is carried so callers can keep it in place on
// write-back instead of dropping the data.
type RecordDecodeError struct {
	Raw string
	Err error
}

func (e *RecordDecodeError) Error() string {
	return fmt.Sprintf("undecodable record entry: %v", e.Err)
}

func (e *RecordDecodeError) Unwrap() error { return e.Err }

// Encode serializes a lead to its transport-safe stored form: canonical
// JSON, percent-escaped so every byte is ASCII, then base64. The escape
// step must come first: base64 alone round-trips bytes but the legacy
// consumers of this format treated the payload as a character string, which
// mangles non-ASCII text.
func Encode(lead *models.Lead) (string, error) {
	raw, err := json.Marshal(lead)
	if err != nil {
		return "", fmt.Errorf("failed to marshal lead: %w", err)
	}
	escaped := percentEscape(raw)
	return base64.StdEncoding.EncodeToString([]byte(escaped)), nil
}

// Decode reverses Encode, folding legacy field aliases onto their canonical
// names. Three formats are accepted, newest first:
//
//  1. base64 of percent-escaped JSON (current format)
//  2. base64 of raw JSON (legacy single-step transform)
//  3. bare JSON (never base64-encoded at all)
//
// A *RecordDecodeError is returned when none of the paths produce a valid
// record; the raw input is preserved inside it.
func Decode(encoded string) (*models.Lead, error) {
	plaintext, err := decodePlaintext(encoded)
	if err != nil {
		return nil, &RecordDecodeError{Raw: encoded, Err: err}
	}

	var fields map[string]any
	if err := json.Unmarshal(plaintext, &fields); err != nil {
		return nil, &RecordDecodeError{Raw: encoded, Err: err}
	}
	models.FoldAliases(fields)

	canonical, err := json.Marshal(fields)
	if err != nil {
		return nil, &RecordDecodeError{Raw: encoded, Err: err}
	}

	var lead models.Lead
	if err := json.Unmarshal(canonical, &lead); err != nil {
		return nil, &RecordDecodeError{Raw: encoded, Err: err}
	}
	return &lead, nil
}

// decodePlaintext recovers the JSON text from an encoded entry, trying each
// known format in turn.
func decodePlaintext(encoded string) ([]byte, error) {
	decoded, b64Err := base64.StdEncoding.DecodeString(encoded)
	if b64Err == nil {
		if unescaped, err := percentUnescape(string(decoded)); err == nil && looksLikeJSON(unescaped) {
			return unescaped, nil
		}
		// Legacy: raw JSON went through base64 with no escape step.
		if looksLikeJSON(decoded) {
			return decoded, nil
		}
		return nil, fmt.Errorf("base64 payload is not a record")
	}

	// Oldest entries were stored as bare JSON.
	if looksLikeJSON([]byte(encoded)) {
		return []byte(encoded), nil
	}
	return nil, fmt.Errorf("not base64 (%v) and not bare JSON", b64Err)
}

func looksLikeJSON(b []byte) bool {
	var probe map[string]any
	return json.Unmarshal(b, &probe) == nil
}

// percentEscape escapes every byte outside the unreserved set as %XX. The
// unreserved set matches what the original writers left untouched:
// alphanumerics plus - _ . ! ~ * ' ( ).
func percentEscape(raw []byte) string {
	const hex = "0123456789ABCDEF"
	buf := make([]byte, 0, len(raw))
	for _, b := range raw {
		if isUnreserved(b) {
			buf = append(buf, b)
			continue
		}
		buf = append(buf, '%', hex[b>>4], hex[b&0x0F])
	}
	return string(buf)
}

// percentUnescape reverses percentEscape, failing on truncated or malformed
// %XX sequences so the caller can fall back to the legacy decode path.
func percentUnescape(s string) ([]byte, error) {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '%' {
			buf = append(buf, c)
			continue
		}
		if i+2 >= len(s) {
			return nil, fmt.Errorf("truncated escape at offset %d", i)
		}
		hi, ok1 := unhex(s[i+1])
		lo, ok2 := unhex(s[i+2])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("malformed escape %q at offset %d", s[i:i+3], i)
		}
		buf = append(buf, hi<<4|lo)
		i += 2
	}
	return buf, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}
