package encode

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ASREncoder is a deterministic placeholder for speech recognition:
// already-text input passes through, byte input decodes as UTF-8 or falls
// back to a SHA-1 digest, and raw sample sequences render as fixed-format
// numbers.
type ASREncoder struct{}

// Transcribe accepts string, []byte, or []float64 input.
func (ASREncoder) Transcribe(audio interface{}) string {
	switch v := audio.(type) {
	case string:
		return strings.TrimSpace(v)
	case []byte:
		if utf8.Valid(v) {
			return strings.TrimSpace(string(v))
		}
		sum := sha1.Sum(v)
		return hex.EncodeToString(sum[:])
	case []float64:
		if len(v) == 0 {
			return ""
		}
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = fmt.Sprintf("%.3f", s)
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}
