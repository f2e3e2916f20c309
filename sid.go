package ldapobject

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/go-objectsid"
)

// Directories store objectSid as binary data; these helpers convert it to
// the S-1-5-21-... string representation.

// minSIDLength is revision + sub-authority count + 6 authority bytes.
const minSIDLength = 8

// SIDFromBytes converts a binary SID to its string representation.
func SIDFromBytes(b []byte) (string, error) {
	if len(b) < minSIDLength {
		return "", fmt.Errorf("binary SID too short: %d bytes", len(b))
	}

	sid := objectsid.Decode(b)
	return sid.String(), nil
}

// ValidateSID checks that a string looks like a properly formatted SID.
func ValidateSID(s string) error {
	if s == "" {
		return fmt.Errorf("SID cannot be empty")
	}
	if len(s) < 5 || !strings.HasPrefix(s, "S-") {
		return fmt.Errorf("invalid SID format: must start with %q", "S-")
	}
	return nil
}

// IsWellKnownSID reports whether the SID belongs to a well-known authority.
func IsWellKnownSID(s string) bool {
	wellKnownPrefixes := []string{
		"S-1-0",    // Null Authority
		"S-1-1",    // World Authority
		"S-1-2",    // Local Authority
		"S-1-3",    // Creator Authority
		"S-1-5-18", // Local System
		"S-1-5-19", // Local Service
		"S-1-5-20", // Network Service
	}

	for _, prefix := range wellKnownPrefixes {
		if s == prefix || strings.HasPrefix(s, prefix+"-") {
			return true
		}
	}
	return false
}
