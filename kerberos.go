package ldapobject

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"
)

// kerberosBind performs a GSSAPI bind on the session using the configured
// Kerberos credentials.
func (c *Conn) kerberosBind(server *ServerInfo) error {
	if err := prepareKerberosConfig(c.cfg); err != nil {
		return fmt.Errorf("kerberos configuration error: %w", err)
	}

	gssapiClient, err := newGSSAPIClient(c.cfg)
	if err != nil {
		return fmt.Errorf("failed to create GSSAPI client: %w", err)
	}
	defer func() {
		_ = gssapiClient.DeleteSecContext()
	}()

	spn, err := servicePrincipal(c.cfg, server)
	if err != nil {
		return fmt.Errorf("failed to build service principal: %w", err)
	}

	return c.session.GSSAPIBind(gssapiClient, spn, "")
}

// newGSSAPIClient creates a GSSAPI client from the configured credentials.
// Priority order: explicit credential cache, default credential cache,
// explicit keytab, default keytab, password.
func newGSSAPIClient(cfg *Config) (ldap.GSSAPIClient, error) {
	krb5conf := cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}

	if !fileExists(krb5conf) {
		return nil, fmt.Errorf("kerberos configuration file not found at %s; create it or set KerberosConfig", krb5conf)
	}

	if cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache) {
		return gssapi.NewClientFromCCache(cfg.KerberosCCache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if ccache := defaultCCachePath(); fileExists(ccache) {
		return gssapi.NewClientFromCCache(ccache, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab) {
		return gssapi.NewClientWithKeytab(cfg.BindDN, cfg.KerberosRealm, cfg.KerberosKeytab, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	if cfg.BindDN != "" {
		if keytab := defaultKeytabPath(); fileExists(keytab) {
			return gssapi.NewClientWithKeytab(cfg.BindDN, cfg.KerberosRealm, keytab, krb5conf, krb5client.DisablePAFXFAST(true))
		}
	}

	if cfg.BindDN != "" && cfg.Password != "" {
		return gssapi.NewClientWithPassword(cfg.BindDN, cfg.KerberosRealm, cfg.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}

	return nil, fmt.Errorf("no suitable credentials found for Kerberos authentication")
}

// servicePrincipal constructs the LDAP service principal name, honoring the
// explicit KerberosSPN override.
func servicePrincipal(cfg *Config, server *ServerInfo) (string, error) {
	if cfg.KerberosSPN != "" {
		return cfg.KerberosSPN, nil
	}

	if server == nil || server.Host == "" {
		return "", fmt.Errorf("server host is required for service principal")
	}

	// The SPN must not carry a port.
	host := server.Host
	if colon := strings.Index(host, ":"); colon != -1 {
		host = host[:colon]
	}

	return fmt.Sprintf("ldap/%s", host), nil
}

// prepareKerberosConfig validates the Kerberos settings, deriving the realm
// from a user@REALM principal when necessary.
func prepareKerberosConfig(cfg *Config) error {
	if cfg.KerberosRealm == "" && strings.Contains(cfg.BindDN, "@") {
		parts := strings.SplitN(cfg.BindDN, "@", 2)
		cfg.BindDN = parts[0]
		cfg.KerberosRealm = parts[1]
	}

	if cfg.KerberosRealm == "" {
		return fmt.Errorf("kerberos realm is required (set KerberosRealm or include the realm in the principal)")
	}

	if cfg.BindDN == "" && cfg.KerberosCCache == "" && !fileExists(defaultCCachePath()) {
		return fmt.Errorf("principal is required for Kerberos authentication without a credential cache")
	}

	hasCredentials := (cfg.KerberosCCache != "" && fileExists(cfg.KerberosCCache)) ||
		fileExists(defaultCCachePath()) ||
		(cfg.KerberosKeytab != "" && fileExists(cfg.KerberosKeytab)) ||
		fileExists(defaultKeytabPath()) ||
		cfg.Password != ""
	if !hasCredentials {
		return fmt.Errorf("no suitable Kerberos credentials found: provide KerberosCCache, KerberosKeytab or a password")
	}

	return nil
}

// defaultCCachePath returns the default credential cache location, honoring
// KRB5CCNAME.
func defaultCCachePath() string {
	if ccache := os.Getenv("KRB5CCNAME"); ccache != "" {
		return strings.TrimPrefix(ccache, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

// defaultKeytabPath returns the default keytab location, honoring
// KRB5_KTNAME.
func defaultKeytabPath() string {
	if keytab := os.Getenv("KRB5_KTNAME"); keytab != "" {
		return strings.TrimPrefix(keytab, "FILE:")
	}
	return "/etc/krb5.keytab"
}

// fileExists checks that a file exists and is readable.
func fileExists(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
