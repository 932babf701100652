package common

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Database drivers and upload layers hand file payloads back in several
// shapes: raw bytes, a hex-prefixed string ("\x25504446..."), a base64
// blob, or a serialized node Buffer ({"type":"Buffer","data":[...]}).
// NormalizeBuffer converts any of them to plain bytes.

var base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)

// bufferJSON matches the serialized Buffer shape some drivers emit
type bufferJSON struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// NormalizeBuffer converts a file payload of unknown encoding to raw bytes.
// Accepts []byte, string (hex-prefixed, base64, or JSON Buffer), and fails
// on anything else.
func NormalizeBuffer(input interface{}) ([]byte, error) {
	switch v := input.(type) {
	case nil:
		return nil, fmt.Errorf("buffer input is nil")
	case []byte:
		return normalizeBytes(v)
	case string:
		return normalizeString(v)
	default:
		return nil, fmt.Errorf("unsupported buffer input type %T", input)
	}
}

func normalizeBytes(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("buffer input is empty")
	}
	// Driver may return hex-prefixed text as bytes
	if len(b) > 2 && b[0] == '\\' && b[1] == 'x' {
		return decodeHexPrefixed(string(b))
	}
	return b, nil
}

func normalizeString(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("buffer input is empty")
	}

	if strings.HasPrefix(s, `\x`) {
		return decodeHexPrefixed(s)
	}

	// Serialized node Buffer shape
	if strings.HasPrefix(s, "{") {
		var buf bufferJSON
		if err := json.Unmarshal([]byte(s), &buf); err == nil && buf.Type == "Buffer" {
			out := make([]byte, len(buf.Data))
			for i, n := range buf.Data {
				if n < 0 || n > 255 {
					return nil, fmt.Errorf("buffer JSON byte out of range at index %d: %d", i, n)
				}
				out[i] = byte(n)
			}
			return out, nil
		}
		return nil, fmt.Errorf("unrecognized JSON buffer shape")
	}

	// Base64 blob: pattern match plus a length floor to avoid treating
	// short plain text as base64
	if len(s) >= 100 && base64Pattern.MatchString(s) {
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err == nil {
			return decoded, nil
		}
	}

	// Fall back to raw string bytes
	return []byte(s), nil
}

func decodeHexPrefixed(s string) ([]byte, error) {
	decoded, err := hex.DecodeString(strings.TrimPrefix(s, `\x`))
	if err != nil {
		return nil, fmt.Errorf("invalid hex-prefixed buffer: %w", err)
	}
	return decoded, nil
}

// EncodeHexPrefixed renders bytes in the driver's hex-prefixed string form
func EncodeHexPrefixed(b []byte) string {
	return `\x` + hex.EncodeToString(b)
}
