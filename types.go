package ldapobject

import (
	"crypto/tls"
	"log/slog"
	"time"

	"github.com/go-ldap/ldap/v3"
)

// Config holds everything needed to establish and authenticate a directory
// connection. The zero value is not usable; Connect applies the tagged
// defaults and rejects syntactically invalid combinations before any network
// attempt is made.
type Config struct {
	// Target settings. Either Host or Domain must be set; with Domain the
	// server list is resolved through DNS SRV discovery.
	Host     string
	Domain   string
	Protocol string `default:"ldap"` // "ldap" or "ldaps"
	Port     int    // 0 selects 636 for ldaps, 389 otherwise

	// Authentication settings
	BindDN   string // DN (or UPN) used for the bind
	Password string

	// Kerberos settings for GSSAPI binds
	KerberosRealm  string
	KerberosKeytab string // path to a keytab file
	KerberosCCache string // path to a credential cache
	KerberosConfig string // path to krb5.conf
	KerberosSPN    string // explicit service principal override

	// Search settings
	BaseDN string // default search base; resolved from the root DSE when empty

	// TLS settings
	TLSConfig         *tls.Config
	DisableStartTLS   bool // plain ldap only; StartTLS is negotiated by default
	TLSClientCertFile string
	TLSClientKeyFile  string

	// Session settings
	ProtocolVersion int           `default:"3"`
	Timeout         time.Duration `default:"30s"`

	Logger *slog.Logger
}

// AuthMethod defines authentication method types.
type AuthMethod int

const (
	AuthMethodSimpleBind AuthMethod = iota
	AuthMethodKerberos
	AuthMethodExternal
)

// String returns string representation of authentication method.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodSimpleBind:
		return "simple"
	case AuthMethodKerberos:
		return "kerberos"
	case AuthMethodExternal:
		return "external"
	default:
		return "unknown"
	}
}

// AuthMethod determines the authentication method from the configuration.
// Kerberos takes precedence, then simple bind, then external (TLS client
// certificate) authentication.
func (c *Config) AuthMethod() AuthMethod {
	if c.KerberosRealm != "" && (c.KerberosKeytab != "" || c.KerberosCCache != "" || c.BindDN != "") {
		return AuthMethodKerberos
	}

	if c.BindDN != "" {
		return AuthMethodSimpleBind
	}

	if c.TLSClientCertFile != "" && c.TLSClientKeyFile != "" {
		return AuthMethodExternal
	}

	return AuthMethodSimpleBind
}

// Attributes is the attribute map staged onto a new entry. Keys are attribute
// names, values the ordered value lists. Set normalizes the single-value case
// through its variadic form.
type Attributes map[string][]string

// Set replaces the values for name.
func (a Attributes) Set(name string, values ...string) {
	a[name] = values
}

// normalize lower-cases every attribute name and drops the "count"
// bookkeeping key some directory client libraries inject into raw result
// maps. Value slices are copied so the result does not alias the input.
func (a Attributes) normalize() map[string][]string {
	out := make(map[string][]string, len(a))
	for name, values := range a {
		key := foldAttribute(name)
		if key == "" || key == rawCountKey {
			continue
		}
		out[key] = append([]string(nil), values...)
	}
	return out
}

// rawCountKey is metadata, not an attribute, in raw result maps.
const rawCountKey = "count"

// session is the narrow surface of *ldap.Conn the connection drives. All
// directory round trips go through it, which keeps the facade testable
// without a live server.
type session interface {
	StartTLS(*tls.Config) error
	Bind(username, password string) error
	GSSAPIBind(client ldap.GSSAPIClient, servicePrincipal, authzID string) error
	Search(*ldap.SearchRequest) (*ldap.SearchResult, error)
	Add(*ldap.AddRequest) error
	Modify(*ldap.ModifyRequest) error
	Del(*ldap.DelRequest) error
	WhoAmI([]ldap.Control) (*ldap.WhoAmIResult, error)
	SetTimeout(time.Duration)
	Close() error
}

var _ session = (*ldap.Conn)(nil)
