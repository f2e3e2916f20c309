package ldapobject

import (
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// Active Directory stores objectGUID in a mixed-endian layout: the first
// three groups little-endian, the final eight bytes big-endian. These
// helpers convert between that layout and the standard hyphenated string
// form.

const guidBytesLength = 16

// GUIDFromBytes converts a directory objectGUID byte value to the standard
// hyphenated string representation.
func GUIDFromBytes(b []byte) (string, error) {
	if len(b) != guidBytesLength {
		return "", fmt.Errorf("invalid GUID byte length: expected %d, got %d", guidBytesLength, len(b))
	}

	u, err := uuid.FromBytes(swapGUIDEndianness(b))
	if err != nil {
		return "", fmt.Errorf("decoding GUID: %w", err)
	}
	return u.String(), nil
}

// GUIDToBytes converts a GUID string (hyphenated or compact, any case) to
// the directory's byte layout.
func GUIDToBytes(s string) ([]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return swapGUIDEndianness(u[:]), nil
}

// NormalizeGUID converts a GUID string to the canonical lower-case
// hyphenated form.
func NormalizeGUID(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid GUID %q: %w", s, err)
	}
	return u.String(), nil
}

// EqualGUID reports whether two GUID strings denote the same value,
// regardless of formatting. Invalid input compares false.
func EqualGUID(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	return errA == nil && errB == nil && ua == ub
}

// GUIDFilter builds the binary-form search filter the directory requires
// for objectGUID lookups.
func GUIDFilter(s string) (string, error) {
	b, err := GUIDToBytes(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("(objectGUID=%s)", ldap.EscapeFilter(string(b))), nil
}

// swapGUIDEndianness converts between the directory's mixed-endian GUID
// layout and the big-endian layout; the transform is its own inverse.
func swapGUIDEndianness(b []byte) []byte {
	out := make([]byte, guidBytesLength)

	// Data1 (4 bytes), Data2 and Data3 (2 bytes each): byte-reversed.
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]

	// Data4: kept as-is.
	copy(out[8:], b[8:])

	return out
}
