/*
Package ldapobject is a small object-oriented facade over
github.com/go-ldap/ldap/v3: it opens a connection, binds with credentials,
and offers create/read/update helpers that map directory entries to
attribute-bag objects with change tracking.

# Connecting

Connect establishes and authenticates a single session:

	conn, err := ldapobject.Connect(ctx, &ldapobject.Config{
		Host:     "ldap.example.org",
		BindDN:   "cn=admin,dc=example,dc=org",
		Password: "secret",
		BaseDN:   "dc=example,dc=org",
	})

Plain-protocol connections negotiate StartTLS by default. Simple bind,
GSSAPI/Kerberos and external (TLS client certificate) authentication are
selected from the configuration. Configuration rejected before any network
attempt surfaces as *ConnectSyntaxError; TLS and bind failures surface as
*DirectoryError with the server's result code and message.

# Entries

Entries are attribute bags with case-insensitive names and multi-valued
attributes. Mutations are tracked so a save sends only what changed:

	user, err := conn.GetOneByAttribute(ctx, "uid", "jdoe")
	user.SetAttribute("mail", []string{"jdoe@example.org"})
	user.PushAttribute("objectClass", "inetOrgPerson")
	err = user.Save(ctx)

A new entry is staged with Create and persisted as an add request by its
first Save.

# Error handling

Every failure propagates synchronously as a typed error; nothing is
swallowed or retried. Callers branch with IsNotFound, IsConflict and the
other predicates rather than inspecting result codes.

The connection holds exactly one session: no pool, no reconnect. After a
failed operation the session state is undefined and the connection should be
discarded.
*/
package ldapobject
