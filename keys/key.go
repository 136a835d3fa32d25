package keys

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Size is the required key length in bytes (AES-256).
const Size = 32

// Key is a 256-bit content-encryption key.
type Key [Size]byte

// String never renders key bytes.
func (Key) String() string { return "[redacted]" }

// GoString never renders key bytes.
func (Key) GoString() string { return "keys.Key{[redacted]}" }

var keyEncodings = []*base64.Encoding{
	base64.RawURLEncoding,
	base64.URLEncoding,
	base64.StdEncoding,
	base64.RawStdEncoding,
}

// ParseKey decodes a base64 secret value into a Key. URL-safe alphabets are
// tried before the standard one; padding is optional.
func ParseKey(value string) (Key, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Key{}, fmt.Errorf("%w: empty secret value", ErrKeyUnavailable)
	}

	observed := -1
	for _, enc := range keyEncodings {
		raw, err := enc.DecodeString(value)
		if err != nil {
			continue
		}
		if len(raw) == Size {
			var k Key
			copy(k[:], raw)
			clear(raw)
			return k, nil
		}
		if observed < 0 {
			observed = len(raw)
		}
		clear(raw)
	}

	if observed < 0 {
		return Key{}, fmt.Errorf("%w: value is not base64", ErrInvalidKeyLength)
	}
	return Key{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKeyLength, observed, Size)
}

// Encode renders k in the URL-safe unpadded form ParseKey accepts first.
func (k Key) Encode() string {
	return base64.RawURLEncoding.EncodeToString(k[:])
}
