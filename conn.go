package ldapobject

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"

	"github.com/creasty/defaults"
	"github.com/go-ldap/ldap/v3"
)

// Conn owns one authenticated session to a directory server and exposes
// entry-level CRUD on top of it. The session handle is retained for the
// connection's lifetime; there is no reconnect and no retry. A failure after
// construction leaves the connection in an undefined state and the caller
// must discard it and connect again.
//
// A mutex serializes operations on the handle, so accidental concurrent use
// queues instead of corrupting the session. Concurrent throughput wants one
// connection per worker.
type Conn struct {
	cfg     *Config
	session session
	logger  *slog.Logger

	mu sync.Mutex

	// baseMu guards the lazily-resolved base DN. It is separate from mu
	// because resolution itself performs a round trip, which takes mu.
	baseMu sync.Mutex
	baseDN string
}

// Connect establishes and authenticates a directory connection.
//
// Configuration problems that can be detected without touching the network
// (unsupported protocol, invalid port, missing target) are reported as
// *ConnectSyntaxError. StartTLS negotiation and bind failures are reported
// as *DirectoryError carrying the server's result code and message.
func Connect(ctx context.Context, cfg *Config) (*Conn, error) {
	// Work on a private copy: applying defaults and deriving Kerberos
	// settings must not write through to caller-owned state.
	own := Config{}
	if cfg != nil {
		own = *cfg
	}
	cfg = &own

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("applying config defaults: %w", err)
	}

	servers, err := resolveServers(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Conn{
		cfg:    cfg,
		logger: logger,
		baseDN: cfg.BaseDN,
	}

	if err := c.establish(ctx, servers); err != nil {
		return nil, err
	}

	return c, nil
}

// ConnectURL is Connect with the target taken from an ldap:// or ldaps://
// URL instead of the config's host settings. The remaining configuration
// (credentials, base DN, TLS, timeout) comes from cfg, which may be nil.
func ConnectURL(ctx context.Context, url string, cfg *Config) (*Conn, error) {
	server, err := ParseServerURL(url)
	if err != nil {
		return nil, &ConnectSyntaxError{Host: url, Reason: err.Error()}
	}

	target := Config{}
	if cfg != nil {
		target = *cfg
	}
	target.Host = server.Host
	target.Port = server.Port
	target.Domain = ""
	if server.UseTLS {
		target.Protocol = "ldaps"
	} else {
		target.Protocol = "ldap"
	}

	return Connect(ctx, &target)
}

// resolveServers turns the config into an ordered server candidate list,
// performing all pure syntax validation up front.
func resolveServers(ctx context.Context, cfg *Config) ([]*ServerInfo, error) {
	if cfg.Protocol != "ldap" && cfg.Protocol != "ldaps" {
		return nil, &ConnectSyntaxError{
			Host:     cfg.Host,
			Protocol: cfg.Protocol,
			Port:     cfg.Port,
			Reason:   `protocol must be "ldap" or "ldaps"`,
		}
	}

	if cfg.ProtocolVersion != 3 {
		return nil, &ConnectSyntaxError{
			Host:     cfg.Host,
			Protocol: cfg.Protocol,
			Port:     cfg.Port,
			Reason:   fmt.Sprintf("protocol version %d is not supported", cfg.ProtocolVersion),
		}
	}

	port := cfg.Port
	if port == 0 {
		if cfg.Protocol == "ldaps" {
			port = 636
		} else {
			port = 389
		}
	}
	if port < 1 || port > 65535 {
		return nil, &ConnectSyntaxError{
			Host:     cfg.Host,
			Protocol: cfg.Protocol,
			Port:     cfg.Port,
			Reason:   fmt.Sprintf("port %d out of range", cfg.Port),
		}
	}

	if cfg.Host != "" {
		server := &ServerInfo{
			Host:   cfg.Host,
			Port:   port,
			UseTLS: cfg.Protocol == "ldaps",
			Source: "config",
		}
		if err := validateServer(server); err != nil {
			return nil, &ConnectSyntaxError{
				Host:     cfg.Host,
				Protocol: cfg.Protocol,
				Port:     port,
				Reason:   err.Error(),
			}
		}
		return []*ServerInfo{server}, nil
	}

	if cfg.Domain != "" {
		return DiscoverServers(ctx, cfg.Domain)
	}

	return nil, &ConnectSyntaxError{
		Protocol: cfg.Protocol,
		Port:     cfg.Port,
		Reason:   "either host or domain must be set",
	}
}

// establish dials the candidate servers in order, negotiates TLS and binds.
// Dial failures move on to the next candidate; TLS and bind failures are
// authoritative for the whole connection.
func (c *Conn) establish(ctx context.Context, servers []*ServerInfo) error {
	var lastDialErr error

	for _, server := range servers {
		if err := ctx.Err(); err != nil {
			return err
		}

		url := ServerURL(server)
		c.logger.Debug("dialing directory server", "url", url, "source", server.Source)

		tlsConfig := c.tlsConfigFor(server)

		var sess *ldap.Conn
		var err error
		if server.UseTLS {
			sess, err = ldap.DialURL(url, ldap.DialWithTLSConfig(tlsConfig))
		} else {
			sess, err = ldap.DialURL(url)
		}
		if err != nil {
			c.logger.Debug("dial failed", "url", url, "error", err.Error())
			lastDialErr = err
			continue
		}

		sess.SetTimeout(c.cfg.Timeout)

		if !server.UseTLS && !c.cfg.DisableStartTLS {
			if err := sess.StartTLS(tlsConfig); err != nil {
				sess.Close()
				return newDirectoryError("starttls", "", err)
			}
		}

		c.session = sess

		if err := c.authenticate(server); err != nil {
			sess.Close()
			c.session = nil
			return err
		}

		c.logger.Debug("directory connection established",
			"url", url,
			"auth_method", c.cfg.AuthMethod().String(),
			"bind_dn", c.cfg.BindDN,
		)
		return nil
	}

	if lastDialErr == nil {
		lastDialErr = fmt.Errorf("no servers to dial")
	}
	return newDirectoryError("connect", "", lastDialErr)
}

// tlsConfigFor derives the TLS configuration for one server, filling in the
// server name required for certificate verification.
func (c *Conn) tlsConfigFor(server *ServerInfo) *tls.Config {
	tlsConfig := c.cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	tlsConfig = tlsConfig.Clone()
	if tlsConfig.ServerName == "" {
		tlsConfig.ServerName = server.Host
	}
	return tlsConfig
}

// authenticate binds the session using the configured method.
func (c *Conn) authenticate(server *ServerInfo) error {
	switch method := c.cfg.AuthMethod(); method {
	case AuthMethodSimpleBind:
		// An empty password is an anonymous bind attempt; the server
		// decides whether to allow it.
		if err := c.session.Bind(c.cfg.BindDN, c.cfg.Password); err != nil {
			return newDirectoryError("bind", c.cfg.BindDN, err)
		}
	case AuthMethodKerberos:
		if err := c.kerberosBind(server); err != nil {
			return newDirectoryError("gssapi bind", c.cfg.BindDN, err)
		}
	case AuthMethodExternal:
		// Certificate authentication happens at the TLS layer; an empty
		// bind completes the LDAP side.
		if err := c.session.Bind("", ""); err != nil {
			return newDirectoryError("external bind", "", err)
		}
	default:
		return fmt.Errorf("unsupported authentication method: %s", method)
	}
	return nil
}

// Close tears down the session. The connection is unusable afterwards.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

// GetByDN reads the single entry anchored at dn. A miss is a *NotFoundError,
// never a raw protocol error.
func (c *Conn) GetByDN(ctx context.Context, dn string) (*Entry, error) {
	entries, err := c.search(ctx, "get_by_dn", dn, ldap.ScopeBaseObject, "(objectClass=*)")
	if err != nil {
		if errorCategory(err) == ErrorCategoryNotFound {
			return nil, &NotFoundError{DN: dn}
		}
		return nil, err
	}

	if len(entries) == 0 {
		return nil, &NotFoundError{DN: dn}
	}

	return entries[0], nil
}

// GetAllByAttribute performs a subtree search for (attribute=value) under
// baseDN, defaulting to the connection's base DN. The value is escaped so
// filter metacharacters are matched literally. An empty result is an empty
// slice, not an error.
func (c *Conn) GetAllByAttribute(ctx context.Context, attribute, value string, baseDN ...string) ([]*Entry, error) {
	if attribute == "" {
		return nil, fmt.Errorf("attribute name must not be empty")
	}

	base, err := c.resolveBase(ctx, baseDN)
	if err != nil {
		return nil, err
	}

	filter := fmt.Sprintf("(%s=%s)", attribute, ldap.EscapeFilter(value))
	entries, err := c.search(ctx, "get_all_by_attribute", base, ldap.ScopeWholeSubtree, filter)
	if err != nil {
		if errorCategory(err) == ErrorCategoryNotFound {
			return []*Entry{}, nil
		}
		return nil, err
	}
	return entries, nil
}

// GetOneByAttribute returns the first entry matching (attribute=value), or a
// *NotFoundError when nothing matches.
func (c *Conn) GetOneByAttribute(ctx context.Context, attribute, value string, baseDN ...string) (*Entry, error) {
	entries, err := c.GetAllByAttribute(ctx, attribute, value, baseDN...)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		base, _ := c.resolveBase(ctx, baseDN)
		return nil, &NotFoundError{
			Filter: fmt.Sprintf("(%s=%s)", attribute, ldap.EscapeFilter(value)),
			BaseDN: base,
		}
	}

	return entries[0], nil
}

// GetByGUID resolves an entry by its objectGUID, searching with the binary
// filter form the directory requires.
func (c *Conn) GetByGUID(ctx context.Context, guid string, baseDN ...string) (*Entry, error) {
	filter, err := GUIDFilter(guid)
	if err != nil {
		return nil, &DirectoryError{
			Operation: "get_by_guid",
			Category:  ErrorCategoryValidation,
			Message:   "invalid GUID",
			Cause:     err,
		}
	}

	base, err := c.resolveBase(ctx, baseDN)
	if err != nil {
		return nil, err
	}

	entries, err := c.search(ctx, "get_by_guid", base, ldap.ScopeWholeSubtree, filter)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &NotFoundError{Filter: filter, BaseDN: base}
	}
	return entries[0], nil
}

// Create stages a new, unsaved entry at dn. Unless skipExistenceCheck is
// set, a read of dn is issued first and a hit yields a *ConflictError. The
// staged entry is not persisted until Save.
func (c *Conn) Create(ctx context.Context, dn string, attrs Attributes, skipExistenceCheck bool) (*Entry, error) {
	if err := ValidateDN(dn); err != nil {
		return nil, &DirectoryError{
			Operation: "create",
			Category:  ErrorCategoryValidation,
			Message:   "invalid DN syntax",
			DN:        dn,
			Cause:     err,
		}
	}

	if !skipExistenceCheck {
		existing, err := c.GetByDN(ctx, dn)
		switch {
		case err == nil:
			return nil, &ConflictError{DN: existing.DN()}
		case IsNotFound(err):
			// Target is free.
		default:
			return nil, err
		}
	}

	entry := NewEntry(dn, attrs)
	entry.conn = c
	for name := range entry.attrs {
		entry.markChanged(name)
	}
	return entry, nil
}

// Save persists an entry: an add request for a new entry with everything it
// carries, a replace-style modify of the changed attributes otherwise. A
// changed attribute with zero current values is cleared on the server. A
// loaded entry with an empty change log is a no-op.
//
// Either request is atomic on the server side; a failure means the whole
// request was rejected.
func (c *Conn) Save(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry must not be nil")
	}

	if entry.isNew {
		return c.saveNew(ctx, entry)
	}
	return c.saveChanged(ctx, entry)
}

func (c *Conn) saveNew(ctx context.Context, entry *Entry) error {
	req := ldap.NewAddRequest(entry.dn, nil)
	attrs := entry.allAttributes()
	for _, attr := range attrs {
		if len(attr.values) == 0 {
			continue
		}
		req.Attribute(attr.name, attr.values)
	}

	err := c.logOperation(ctx, "add", map[string]any{
		"dn":         entry.dn,
		"attributes": len(attrs),
	}, func() error {
		return c.roundTrip(ctx, func() error {
			return c.session.Add(req)
		})
	})
	if err != nil {
		return newDirectoryError("add", entry.dn, err)
	}

	entry.isNew = false
	entry.conn = c
	entry.resetChanges()
	return nil
}

func (c *Conn) saveChanged(ctx context.Context, entry *Entry) error {
	changed := entry.changedAttributeList()
	if len(changed) == 0 {
		c.logger.Debug("save skipped, no attributes changed", "dn", entry.dn)
		return nil
	}

	req := ldap.NewModifyRequest(entry.dn, nil)
	for _, attr := range changed {
		req.Replace(attr.name, attr.values)
	}

	err := c.logOperation(ctx, "modify", map[string]any{
		"dn":                 entry.dn,
		"changed_attributes": len(changed),
	}, func() error {
		return c.roundTrip(ctx, func() error {
			return c.session.Modify(req)
		})
	})
	if err != nil {
		return newDirectoryError("modify", entry.dn, err)
	}

	entry.resetChanges()
	return nil
}

// Delete removes the entry at dn. A miss is a *NotFoundError.
func (c *Conn) Delete(ctx context.Context, dn string) error {
	req := ldap.NewDelRequest(dn, nil)

	err := c.logOperation(ctx, "delete", map[string]any{"dn": dn}, func() error {
		return c.roundTrip(ctx, func() error {
			return c.session.Del(req)
		})
	})
	if err != nil {
		if errorCategory(err) == ErrorCategoryNotFound {
			return &NotFoundError{DN: dn}
		}
		return newDirectoryError("delete", dn, err)
	}
	return nil
}

// WhoAmI performs the Who Am I? extended operation and returns the
// authorization identity the server reports for this session.
func (c *Conn) WhoAmI(ctx context.Context) (string, error) {
	var result *ldap.WhoAmIResult

	err := c.logOperation(ctx, "whoami", nil, func() error {
		return c.roundTrip(ctx, func() error {
			var opErr error
			result, opErr = c.session.WhoAmI(nil)
			return opErr
		})
	})
	if err != nil {
		return "", newDirectoryError("whoami", "", err)
	}
	if result == nil {
		return "", fmt.Errorf("whoami returned no result")
	}
	return result.AuthzID, nil
}

// BaseDN returns the connection's default search base, reading the root
// DSE's defaultNamingContext the first time when none was configured.
func (c *Conn) BaseDN(ctx context.Context) (string, error) {
	c.baseMu.Lock()
	defer c.baseMu.Unlock()

	if c.baseDN != "" {
		return c.baseDN, nil
	}

	entries, err := c.search(ctx, "root_dse", "", ldap.ScopeBaseObject, "(objectClass=*)", "defaultNamingContext")
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no root DSE found")
	}

	base := entries[0].FirstValue("defaultNamingContext")
	if base == "" {
		return "", fmt.Errorf("root DSE has no defaultNamingContext")
	}

	c.baseDN = base
	return base, nil
}

// resolveBase picks the search base: explicit override, configured default,
// or the root DSE's naming context.
func (c *Conn) resolveBase(ctx context.Context, override []string) (string, error) {
	if len(override) > 0 && override[0] != "" {
		return override[0], nil
	}
	return c.BaseDN(ctx)
}

// search issues one search round trip and materializes the results.
func (c *Conn) search(ctx context.Context, operation, base string, scope int, filter string, attributes ...string) ([]*Entry, error) {
	req := ldap.NewSearchRequest(
		base,
		scope,
		ldap.NeverDerefAliases,
		0, 0, false,
		filter,
		attributes,
		nil,
	)

	var result *ldap.SearchResult
	fields := map[string]any{
		"base_dn": base,
		"filter":  filter,
	}

	err := c.logOperation(ctx, operation, fields, func() error {
		return c.roundTrip(ctx, func() error {
			var searchErr error
			result, searchErr = c.session.Search(req)
			return searchErr
		})
	})
	if err != nil {
		return nil, newDirectoryError(operation, base, err)
	}

	entries := make([]*Entry, 0, len(result.Entries))
	for _, raw := range result.Entries {
		entries = append(entries, newEntryFromResult(c, raw))
	}
	return entries, nil
}

// roundTrip serializes one blocking exchange on the session handle. The
// context is only consulted up front: the transport timeout set at dial time
// bounds the exchange itself.
func (c *Conn) roundTrip(ctx context.Context, op func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return fmt.Errorf("connection is closed")
	}
	return op()
}
