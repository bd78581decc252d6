package registry

import (
	"github.com/mr-tron/base58"
)

// HandleBytes renders an opaque handle into a fixed-width blob field.
// Handles minted by the program are base58 addresses; anything that
// fails to decode is taken as raw bytes. The result is zero-padded or
// truncated to width.
func HandleBytes(handle string, width int) []byte {
	out := make([]byte, width)
	if raw, err := base58.Decode(handle); err == nil && len(raw) > 0 {
		copy(out, raw)
		return out
	}
	copy(out, handle)
	return out
}
