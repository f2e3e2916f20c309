package ldapobject

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeDNValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "jdoe", "jdoe"},
		{"comma", "Smith, John", `Smith\, John`},
		{"plus", "a+b", `a\+b`},
		{"quote", `say "hi"`, `say \"hi\"`},
		{"backslash", `a\b`, `a\\b`},
		{"angle brackets", "<tag>", `\<tag\>`},
		{"semicolon", "a;b", `a\;b`},
		{"leading hash", "#hash", `\#hash`},
		{"inner hash untouched", "a#b", "a#b"},
		{"leading space", " lead", `\ lead`},
		{"trailing space", "trail ", `trail\ `},
		{"inner space untouched", "a b", "a b"},
		{"nul byte", "a\x00b", `a\00b`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EscapeDNValue(tt.value))
		})
	}
}

func TestUnescapeDNValue(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  string
	}{
		{"no escapes", "jdoe", "jdoe"},
		{"escaped comma", `Smith\, John`, "Smith, John"},
		{"escaped backslash", `a\\b`, `a\b`},
		{"hex escape", `\4aohn`, "John"},
		{"hex escape lowercase", `\4d`, "M"},
		{"trailing backslash kept", `abc\`, `abc\`},
		{"escaped non-hex pair", `\zz`, "zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UnescapeDNValue(tt.value))
		})
	}
}

func TestEscapeDNValueRoundTrip(t *testing.T) {
	values := []string{
		"Smith, John",
		`back\slash`,
		"#leading",
		" padded ",
		"cn=fake,dc=evil",
	}

	for _, value := range values {
		assert.Equal(t, value, UnescapeDNValue(EscapeDNValue(value)), "value %q", value)
	}
}

func TestValidateDN(t *testing.T) {
	valid := []string{
		"cn=jdoe,dc=example,dc=org",
		"CN=JDoe,OU=People,DC=Example,DC=Org",
		`cn=Smith\, John,dc=example,dc=org`,
		"dc=org",
	}
	for _, dn := range valid {
		assert.NoError(t, ValidateDN(dn), "DN %q", dn)
	}

	invalid := []string{
		"",
		"   ",
		"not a dn",
		"=novalue,dc=org",
	}
	for _, dn := range invalid {
		assert.Error(t, ValidateDN(dn), "DN %q", dn)
	}
}

func TestNormalizeDN(t *testing.T) {
	got, err := NormalizeDN("cn=jdoe, ou=people, dc=example, dc=org")
	require.NoError(t, err)
	assert.Equal(t, "CN=jdoe,OU=people,DC=example,DC=org", got)

	got, err = NormalizeDN("")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = NormalizeDN("garbage")
	assert.Error(t, err)
}

func TestNormalizeDNPreservesEscapedValues(t *testing.T) {
	got, err := NormalizeDN(`cn=Smith\, John,dc=example,dc=org`)
	require.NoError(t, err)
	assert.Equal(t, `CN=Smith\, John,DC=example,DC=org`, got)

	// The escaped comma stays part of the value, not an RDN separator.
	parent, err := ParentDN(got)
	require.NoError(t, err)
	assert.Equal(t, "DC=example,DC=org", parent)

	assert.True(t, EqualDN(`cn=Smith\, John,dc=example,dc=org`, `CN=smith\, john,DC=example,DC=org`))
	assert.False(t, EqualDN(`cn=Smith\, John,dc=example,dc=org`, "cn=Smith,dc=example,dc=org"))
}

func TestEqualDN(t *testing.T) {
	assert.True(t, EqualDN("cn=jdoe,dc=example,dc=org", "CN=JDoe, DC=Example, DC=Org"))
	assert.False(t, EqualDN("cn=jdoe,dc=example,dc=org", "cn=other,dc=example,dc=org"))
	assert.False(t, EqualDN("not a dn", "cn=jdoe,dc=example,dc=org"))
}

func TestParentDN(t *testing.T) {
	parent, err := ParentDN("cn=jdoe,ou=people,dc=example,dc=org")
	require.NoError(t, err)
	assert.Equal(t, "OU=people,DC=example,DC=org", parent)

	_, err = ParentDN("dc=org")
	assert.Error(t, err)

	_, err = ParentDN("not a dn")
	assert.Error(t, err)
}

func TestRDNValue(t *testing.T) {
	dn := "cn=web,ou=groups,dc=example,dc=org"

	value, err := RDNValue(dn, "cn")
	require.NoError(t, err)
	assert.Equal(t, "web", value)

	// Attribute type matching is case-insensitive.
	value, err = RDNValue(dn, "CN")
	require.NoError(t, err)
	assert.Equal(t, "web", value)

	value, err = RDNValue(dn, "ou")
	require.NoError(t, err)
	assert.Equal(t, "groups", value)

	_, err = RDNValue(dn, "uid")
	assert.Error(t, err)
}
