package ldapobject

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binarySID builds the on-wire form: revision, sub-authority count, 48-bit
// big-endian authority, then little-endian 32-bit sub-authorities.
func binarySID(authority byte, subAuthorities ...uint32) []byte {
	b := []byte{1, byte(len(subAuthorities)), 0, 0, 0, 0, 0, authority}
	for _, sub := range subAuthorities {
		b = binary.LittleEndian.AppendUint32(b, sub)
	}
	return b
}

func TestSIDFromBytes(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		want string
	}{
		{"local system", binarySID(5, 18), "S-1-5-18"},
		{"domain admin", binarySID(5, 21, 1004336348, 1177238915, 682003330, 500), "S-1-5-21-1004336348-1177238915-682003330-500"},
		{"world", binarySID(1, 0), "S-1-1-0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SIDFromBytes(tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSIDFromBytesRejectsShortInput(t *testing.T) {
	_, err := SIDFromBytes([]byte{1, 1, 0})
	assert.Error(t, err)

	_, err = SIDFromBytes(nil)
	assert.Error(t, err)
}

func TestValidateSID(t *testing.T) {
	assert.NoError(t, ValidateSID("S-1-5-18"))
	assert.NoError(t, ValidateSID("S-1-5-21-1004336348-1177238915-682003330-500"))

	assert.Error(t, ValidateSID(""))
	assert.Error(t, ValidateSID("X-1-5-18"))
	assert.Error(t, ValidateSID("S-1"))
}

func TestIsWellKnownSID(t *testing.T) {
	tests := []struct {
		sid  string
		want bool
	}{
		{"S-1-5-18", true},
		{"S-1-5-19", true},
		{"S-1-5-20", true},
		{"S-1-1-0", true},
		{"S-1-3-0", true},
		{"S-1-5-18-500", true},
		{"S-1-5-180", false},
		{"S-1-5-21-1004336348-1177238915-682003330-500", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsWellKnownSID(tt.sid), "SID %q", tt.sid)
	}
}
