package ldapobject

import (
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// EscapeDNValue escapes special characters in a DN attribute value according
// to RFC 4514: the characters , + " \ < > ; always, a leading #, leading and
// trailing spaces, and NUL bytes as \00.
func EscapeDNValue(value string) string {
	if value == "" {
		return value
	}

	var result strings.Builder
	result.Grow(len(value) + 8)

	for i, r := range value {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			result.WriteRune('\\')
			result.WriteRune(r)
		case '#':
			if i == 0 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case ' ':
			if i == 0 || i == len(value)-1 {
				result.WriteRune('\\')
			}
			result.WriteRune(r)
		case 0:
			result.WriteString("\\00")
		default:
			result.WriteRune(r)
		}
	}

	return result.String()
}

// UnescapeDNValue removes RFC 4514 escaping from a DN attribute value,
// including \XX hex escapes.
func UnescapeDNValue(value string) string {
	if !strings.Contains(value, "\\") {
		return value
	}

	var result strings.Builder
	result.Grow(len(value))

	runes := []rune(value)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '\\' {
			result.WriteRune(r)
			continue
		}

		if i == len(runes)-1 {
			// Trailing backslash, not a valid escape.
			result.WriteRune(r)
			break
		}

		// Two hex digits form a byte escape.
		if i+2 < len(runes) {
			if hi, okHi := hexValue(runes[i+1]); okHi {
				if lo, okLo := hexValue(runes[i+2]); okLo {
					result.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
		}

		// Plain escaped character.
		result.WriteRune(runes[i+1])
		i++
	}

	return result.String()
}

func hexValue(r rune) (int, bool) {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0'), true
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10, true
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10, true
	default:
		return 0, false
	}
}

// ValidateDN checks that dn is a syntactically valid distinguished name.
func ValidateDN(dn string) error {
	if strings.TrimSpace(dn) == "" {
		return fmt.Errorf("DN cannot be empty")
	}

	if _, err := ldap.ParseDN(dn); err != nil {
		return fmt.Errorf("invalid DN syntax: %w", err)
	}
	return nil
}

// NormalizeDN canonicalizes a distinguished name: attribute type descriptors
// uppercased, RDNs joined without extra whitespace, values preserved.
func NormalizeDN(dn string) (string, error) {
	dn = strings.TrimSpace(dn)
	if dn == "" {
		return "", nil
	}

	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}

	return reconstructDN(parsed), nil
}

func reconstructDN(parsed *ldap.DN) string {
	rdns := make([]string, 0, len(parsed.RDNs))

	for _, rdn := range parsed.RDNs {
		attrs := make([]string, 0, len(rdn.Attributes))
		for _, attr := range rdn.Attributes {
			// ParseDN hands values back unescaped; re-escape so special
			// characters survive the round trip.
			attrs = append(attrs, fmt.Sprintf("%s=%s", strings.ToUpper(attr.Type), EscapeDNValue(attr.Value)))
		}
		rdns = append(rdns, strings.Join(attrs, "+"))
	}

	return strings.Join(rdns, ",")
}

// EqualDN reports whether two distinguished names refer to the same entry,
// comparing case-insensitively after normalization. Syntactically invalid
// input compares false.
func EqualDN(a, b string) bool {
	na, errA := NormalizeDN(a)
	nb, errB := NormalizeDN(b)
	if errA != nil || errB != nil {
		return false
	}
	return strings.EqualFold(na, nb)
}

// ParentDN returns the DN with its first RDN removed.
func ParentDN(dn string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}

	if len(parsed.RDNs) <= 1 {
		return "", fmt.Errorf("DN has no parent: %s", dn)
	}

	return reconstructDN(&ldap.DN{RDNs: parsed.RDNs[1:]}), nil
}

// RDNValue extracts the value of the first RDN component with the given
// attribute type, e.g. the "cn" of "cn=web,ou=groups,dc=example,dc=org".
func RDNValue(dn, attrType string) (string, error) {
	parsed, err := ldap.ParseDN(dn)
	if err != nil {
		return "", fmt.Errorf("invalid DN syntax: %w", err)
	}

	want := strings.ToUpper(attrType)
	for _, rdn := range parsed.RDNs {
		for _, attr := range rdn.Attributes {
			if strings.ToUpper(attr.Type) == want {
				return attr.Value, nil
			}
		}
	}

	return "", fmt.Errorf("attribute type %q not found in DN %q", attrType, dn)
}
