package ldapobject

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDirectoryErrorFromProtocolError(t *testing.T) {
	cause := ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("80090308: LdapErr: DSID-0C090453"))

	err := newDirectoryError("bind", "cn=jdoe,dc=example,dc=org", cause)
	require.NotNil(t, err)

	assert.Equal(t, "bind", err.Operation)
	assert.Equal(t, uint16(ldap.LDAPResultInvalidCredentials), err.Code)
	assert.Equal(t, ErrorCategoryAuthentication, err.Category)
	assert.Equal(t, "invalid credentials", err.Message)
	assert.Contains(t, err.ServerMessage, "80090308")
	assert.Equal(t, "cn=jdoe,dc=example,dc=org", err.DN)
	assert.ErrorIs(t, err, cause)
}

func TestNewDirectoryErrorFromGenericError(t *testing.T) {
	err := newDirectoryError("connect", "", fmt.Errorf("dial tcp: connection refused"))
	require.NotNil(t, err)

	assert.Equal(t, uint16(0), err.Code)
	assert.Equal(t, ErrorCategoryConnection, err.Category)
	assert.Equal(t, "dial tcp: connection refused", err.Message)
	assert.Empty(t, err.ServerMessage)
}

func TestNewDirectoryErrorNil(t *testing.T) {
	assert.Nil(t, newDirectoryError("bind", "", nil))
}

func TestDirectoryErrorString(t *testing.T) {
	err := &DirectoryError{
		Operation: "modify",
		Code:      uint16(ldap.LDAPResultInsufficientAccessRights),
		Message:   "insufficient access rights",
		DN:        "cn=jdoe,dc=example,dc=org",
	}

	msg := err.Error()
	assert.Contains(t, msg, "modify")
	assert.Contains(t, msg, "code 50")
	assert.Contains(t, msg, "insufficient access rights")
	assert.Contains(t, msg, "cn=jdoe,dc=example,dc=org")
}

func TestCategorizeCode(t *testing.T) {
	tests := []struct {
		code uint16
		want ErrorCategory
	}{
		{ldap.LDAPResultInvalidCredentials, ErrorCategoryAuthentication},
		{ldap.LDAPResultInappropriateAuthentication, ErrorCategoryAuthentication},
		{ldap.LDAPResultInsufficientAccessRights, ErrorCategoryPermission},
		{ldap.LDAPResultUnwillingToPerform, ErrorCategoryPermission},
		{ldap.LDAPResultNoSuchObject, ErrorCategoryNotFound},
		{ldap.LDAPResultEntryAlreadyExists, ErrorCategoryConflict},
		{ldap.LDAPResultObjectClassViolation, ErrorCategoryConflict},
		{ldap.LDAPResultInvalidDNSyntax, ErrorCategoryValidation},
		{ldap.LDAPResultConstraintViolation, ErrorCategoryValidation},
		{ldap.LDAPResultServerDown, ErrorCategoryServer},
		{ldap.LDAPResultBusy, ErrorCategoryServer},
		{ldap.LDAPResultProtocolError, ErrorCategoryConnection},
		{ldap.LDAPResultSuccess, ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeCode(tt.code), "code %d", tt.code)
	}
}

func TestCategorizeGenericError(t *testing.T) {
	tests := []struct {
		message string
		want    ErrorCategory
	}{
		{"dial tcp: i/o timeout", ErrorCategoryConnection},
		{"write: broken pipe", ErrorCategoryConnection},
		{"invalid credentials provided", ErrorCategoryAuthentication},
		{"access denied", ErrorCategoryPermission},
		{"something else entirely", ErrorCategoryUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, categorizeGenericError(errors.New(tt.message)), "message %q", tt.message)
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := &NotFoundError{DN: "cn=missing,dc=example,dc=org"}
	conflict := &ConflictError{DN: "cn=taken,dc=example,dc=org"}
	syntax := &ConnectSyntaxError{Host: "x", Protocol: "http", Reason: "bad protocol"}
	authErr := newDirectoryError("bind", "", ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("nope")))
	permErr := newDirectoryError("modify", "", ldap.NewError(ldap.LDAPResultInsufficientAccessRights, errors.New("nope")))

	assert.True(t, IsNotFound(notFound))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", notFound)))
	assert.False(t, IsNotFound(conflict))
	assert.False(t, IsNotFound(nil))

	assert.True(t, IsConflict(conflict))
	assert.False(t, IsConflict(notFound))

	assert.True(t, IsConnectSyntax(syntax))
	assert.False(t, IsConnectSyntax(notFound))

	assert.True(t, IsAuthentication(authErr))
	assert.False(t, IsAuthentication(permErr))

	assert.True(t, IsPermission(permErr))
	assert.False(t, IsPermission(authErr))
}

func TestNotFoundErrorString(t *testing.T) {
	byDN := &NotFoundError{DN: "cn=missing,dc=example,dc=org"}
	assert.Contains(t, byDN.Error(), "cn=missing,dc=example,dc=org")

	byFilter := &NotFoundError{Filter: "(uid=nobody)", BaseDN: "dc=example,dc=org"}
	assert.Contains(t, byFilter.Error(), "(uid=nobody)")
	assert.Contains(t, byFilter.Error(), "dc=example,dc=org")
}

func TestConnectSyntaxErrorString(t *testing.T) {
	err := &ConnectSyntaxError{Host: "ldap.example.org", Protocol: "http", Port: 80, Reason: "bad protocol"}
	assert.Contains(t, err.Error(), "http://ldap.example.org:80")
	assert.Contains(t, err.Error(), "bad protocol")
}
