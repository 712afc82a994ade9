package webbt

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// bluetoothBaseSuffix completes a short-form UUID into the standard
// Bluetooth base UUID 0000xxxx-0000-1000-8000-00805f9b34fb.
const bluetoothBaseSuffix = "-0000-1000-8000-00805f9b34fb"

// NormalizeUUID converts a UUID token into canonical lowercase 128-bit
// form. Accepted inputs: 4 hex digits (16-bit), 8 hex digits (32-bit),
// optionally 0x-prefixed, or a full 128-bit UUID. Short forms are expanded
// over the Bluetooth base UUID. Normalization is idempotent.
func NormalizeUUID(token string) (string, error) {
	t := strings.ToLower(strings.TrimSpace(token))
	t = strings.TrimPrefix(t, "0x")

	switch len(t) {
	case 4, 8:
		if _, err := strconv.ParseUint(t, 16, 32); err != nil {
			return "", &InvalidUUIDError{Token: token}
		}
		full := strings.Repeat("0", 8-len(t)) + t + bluetoothBaseSuffix
		id, err := uuid.Parse(full)
		if err != nil {
			return "", &InvalidUUIDError{Token: token}
		}
		return id.String(), nil
	default:
		id, err := uuid.Parse(t)
		if err != nil {
			return "", &InvalidUUIDError{Token: token}
		}
		return id.String(), nil
	}
}

// canonicalUUID normalizes for comparison, falling back to a lowercase of
// the input when the token is not a valid UUID. Adapter backends already
// report canonical UUIDs; the fallback keeps comparisons total.
func canonicalUUID(token string) string {
	if n, err := NormalizeUUID(token); err == nil {
		return n
	}
	return strings.ToLower(strings.TrimSpace(token))
}
