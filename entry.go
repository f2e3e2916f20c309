package ldapobject

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// Entry is an in-memory representation of one directory entry: its
// distinguished name, its attribute values and a log of the attribute names
// mutated since the entry was loaded (or created). Attribute names are
// case-insensitive and held lower-cased internally. Reads never touch the
// change log; Save builds a minimal replace request from it.
//
// An Entry is bound to the connection that produced it, but does not own it:
// closing the connection invalidates Save on the entry, nothing more.
type Entry struct {
	conn    *Conn
	dn      string
	attrs   map[string][]string
	raw     map[string][][]byte
	changed map[string]struct{}
	isNew   bool
}

// NewEntry stages a detached, not-yet-persisted entry. Entries produced this
// way must be handed to Conn.Save; Conn.Create is the usual path and also
// performs the existence check.
func NewEntry(dn string, attrs Attributes) *Entry {
	return &Entry{
		dn:      dn,
		attrs:   attrs.normalize(),
		changed: make(map[string]struct{}),
		isNew:   true,
	}
}

// newEntryFromResult eagerly materializes an entry from a search result,
// lower-casing attribute names and dropping bookkeeping keys. Raw byte
// values are retained for binary attributes such as objectGUID.
func newEntryFromResult(conn *Conn, raw *ldap.Entry) *Entry {
	e := &Entry{
		conn:    conn,
		dn:      raw.DN,
		attrs:   make(map[string][]string, len(raw.Attributes)),
		raw:     make(map[string][][]byte, len(raw.Attributes)),
		changed: make(map[string]struct{}),
	}

	for _, attr := range raw.Attributes {
		key := foldAttribute(attr.Name)
		if key == "" || key == rawCountKey {
			continue
		}
		e.attrs[key] = append([]string(nil), attr.Values...)
		e.raw[key] = append([][]byte(nil), attr.ByteValues...)
	}

	return e
}

// foldAttribute canonicalizes an attribute name for map lookups.
func foldAttribute(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DN returns the entry's distinguished name.
func (e *Entry) DN() string {
	return e.dn
}

// IsNew reports whether the entry has not yet been persisted.
func (e *Entry) IsNew() bool {
	return e.isNew
}

// GetAttribute returns the values of the named attribute. The lookup is
// case-insensitive; an absent attribute yields an empty slice, never an
// error. The returned slice is a copy.
func (e *Entry) GetAttribute(name string) []string {
	values, ok := e.attrs[foldAttribute(name)]
	if !ok {
		return []string{}
	}
	return append([]string(nil), values...)
}

// FirstValue returns the first value of the named attribute, or "" when the
// attribute is absent or empty.
func (e *Entry) FirstValue(name string) string {
	values := e.attrs[foldAttribute(name)]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// HasAttribute reports whether the named attribute carries at least one value.
func (e *Entry) HasAttribute(name string) bool {
	return len(e.attrs[foldAttribute(name)]) > 0
}

// SetAttribute replaces all values of the named attribute and records the
// change.
func (e *Entry) SetAttribute(name string, values []string) {
	key := foldAttribute(name)
	e.attrs[key] = append([]string(nil), values...)
	e.markChanged(key)
}

// PushAttribute appends one value to the named attribute. Duplicates are
// legal and preserved.
func (e *Entry) PushAttribute(name, value string) {
	key := foldAttribute(name)
	e.attrs[key] = append(e.attrs[key], value)
	e.markChanged(key)
}

// RemoveValue removes the first value exactly equal to value, scanning in
// order, and reports whether a removal occurred. The attribute is only
// recorded as changed when something was actually removed.
func (e *Entry) RemoveValue(name, value string) bool {
	key := foldAttribute(name)
	values := e.attrs[key]

	for i, v := range values {
		if v == value {
			e.attrs[key] = append(values[:i:i], values[i+1:]...)
			e.markChanged(key)
			return true
		}
	}

	return false
}

// RemoveAttribute clears all values of the named attribute and records the
// change; on save this deletes the attribute server-side.
func (e *Entry) RemoveAttribute(name string) {
	e.SetAttribute(name, nil)
}

// AttributeNames returns the names of all attributes currently carrying
// values, sorted for deterministic iteration.
func (e *Entry) AttributeNames() []string {
	names := make([]string, 0, len(e.attrs))
	for name := range e.attrs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ChangedAttributes returns a snapshot of every attribute mutated since the
// entry was loaded or created, mapped to its current values. Multiple
// mutations of the same attribute collapse to the final value set; an entry
// in the map with zero values clears the attribute on save.
func (e *Entry) ChangedAttributes() map[string][]string {
	out := make(map[string][]string, len(e.changed))
	for name := range e.changed {
		values := e.attrs[name]
		out[name] = append([]string{}, values...)
	}
	return out
}

// Save persists the entry through the connection that produced it.
func (e *Entry) Save(ctx context.Context) error {
	if e.conn == nil {
		return fmt.Errorf("entry %q is not bound to a connection", e.dn)
	}
	return e.conn.Save(ctx, e)
}

// ObjectGUID decodes the entry's objectGUID attribute from its mixed-endian
// binary form into the standard hyphenated string representation.
func (e *Entry) ObjectGUID() (string, error) {
	raw := e.rawValue("objectGUID")
	if len(raw) == 0 {
		return "", fmt.Errorf("entry %q has no objectGUID attribute", e.dn)
	}
	return GUIDFromBytes(raw)
}

// ObjectSID decodes the entry's objectSid attribute from its binary form
// into the S-1-5-21-... string representation.
func (e *Entry) ObjectSID() (string, error) {
	raw := e.rawValue("objectSid")
	if len(raw) == 0 {
		return "", fmt.Errorf("entry %q has no objectSid attribute", e.dn)
	}
	return SIDFromBytes(raw)
}

// rawValue returns the first raw byte value of an attribute, falling back to
// the string value for entries not loaded from a search result.
func (e *Entry) rawValue(name string) []byte {
	key := foldAttribute(name)
	if raw := e.raw[key]; len(raw) > 0 {
		return raw[0]
	}
	if values := e.attrs[key]; len(values) > 0 {
		return []byte(values[0])
	}
	return nil
}

// allAttributes returns every attribute with its current values, sorted by
// name, for building add requests.
func (e *Entry) allAttributes() []attributeValues {
	out := make([]attributeValues, 0, len(e.attrs))
	for _, name := range e.AttributeNames() {
		out = append(out, attributeValues{name: name, values: e.attrs[name]})
	}
	return out
}

// changedAttributeList returns the change snapshot in deterministic order
// for building modify requests.
func (e *Entry) changedAttributeList() []attributeValues {
	changed := e.ChangedAttributes()

	names := make([]string, 0, len(changed))
	for name := range changed {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]attributeValues, 0, len(names))
	for _, name := range names {
		out = append(out, attributeValues{name: name, values: changed[name]})
	}
	return out
}

// resetChanges supersedes the change log after a successful save.
func (e *Entry) resetChanges() {
	e.changed = make(map[string]struct{})
}

func (e *Entry) markChanged(key string) {
	e.changed[key] = struct{}{}
}

type attributeValues struct {
	name   string
	values []string
}
