package ldapobject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// ErrorCategory represents different categories of directory errors.
type ErrorCategory string

const (
	ErrorCategoryConnection     ErrorCategory = "connection"
	ErrorCategoryAuthentication ErrorCategory = "authentication"
	ErrorCategoryPermission     ErrorCategory = "permission"
	ErrorCategoryNotFound       ErrorCategory = "not_found"
	ErrorCategoryConflict       ErrorCategory = "conflict"
	ErrorCategoryValidation     ErrorCategory = "validation"
	ErrorCategoryServer         ErrorCategory = "server"
	ErrorCategoryUnknown        ErrorCategory = "unknown"
)

// DirectoryError wraps a failure reported by the directory server or the
// underlying client library: the numeric result code, the server-provided
// message and a human-readable description, categorized for callers that
// want to branch without inspecting codes.
type DirectoryError struct {
	Operation     string        // the operation that failed
	Category      ErrorCategory // error category
	Code          uint16        // LDAP result code, 0 when not a protocol error
	Message       string        // human-readable message
	ServerMessage string        // server-provided message
	DN            string        // DN involved in the operation, if any
	Cause         error         // underlying error
}

func (e *DirectoryError) Error() string {
	var parts []string

	if e.Code > 0 {
		parts = append(parts, fmt.Sprintf("directory %s failed (code %d)", e.Operation, e.Code))
	} else {
		parts = append(parts, fmt.Sprintf("directory %s failed", e.Operation))
	}

	if e.Message != "" {
		parts = append(parts, e.Message)
	}

	if e.ServerMessage != "" && e.ServerMessage != e.Message {
		parts = append(parts, fmt.Sprintf("server: %s", e.ServerMessage))
	}

	if e.DN != "" {
		parts = append(parts, fmt.Sprintf("DN: %s", e.DN))
	}

	return strings.Join(parts, " - ")
}

func (e *DirectoryError) Unwrap() error {
	return e.Cause
}

// newDirectoryError builds a DirectoryError from a client-library failure.
// Result code, server message and category are extracted when the cause is a
// protocol-level *ldap.Error.
func newDirectoryError(operation, dn string, err error) *DirectoryError {
	if err == nil {
		return nil
	}

	dirErr := &DirectoryError{
		Operation: operation,
		DN:        dn,
		Cause:     err,
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		dirErr.Code = ldapErr.ResultCode
		if ldapErr.Err != nil {
			dirErr.ServerMessage = ldapErr.Err.Error()
		}
		dirErr.Category = categorizeCode(ldapErr.ResultCode)
		dirErr.Message = resultCodeMessage(ldapErr.ResultCode)
	} else {
		dirErr.Category = categorizeGenericError(err)
		dirErr.Message = err.Error()
	}

	return dirErr
}

// ConnectSyntaxError reports a host/protocol/port combination rejected
// before any network attempt was made. It is never retriable without a
// configuration change.
type ConnectSyntaxError struct {
	Host     string
	Protocol string
	Port     int
	Reason   string
}

func (e *ConnectSyntaxError) Error() string {
	target := e.Host
	if e.Protocol != "" {
		target = fmt.Sprintf("%s://%s:%d", e.Protocol, e.Host, e.Port)
	}
	return fmt.Sprintf("invalid connection target %s: %s", target, e.Reason)
}

// NotFoundError reports a read that matched no entry.
type NotFoundError struct {
	DN     string // set for DN-anchored reads
	Filter string // set for attribute searches
	BaseDN string
}

func (e *NotFoundError) Error() string {
	if e.DN != "" {
		return fmt.Sprintf("no entry found for DN %s", e.DN)
	}
	return fmt.Sprintf("no entry matched %s under %s", e.Filter, e.BaseDN)
}

// ConflictError reports a create targeting a DN that already exists.
type ConflictError struct {
	DN string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("DN already exists: %s", e.DN)
}

// IsNotFound reports whether err indicates a "no such entry" condition,
// either a NotFoundError from this package or a directory error in the
// not_found category.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return true
	}
	return errorCategory(err) == ErrorCategoryNotFound
}

// IsConflict reports whether err indicates an already-exists condition.
func IsConflict(err error) bool {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return true
	}
	return errorCategory(err) == ErrorCategoryConflict
}

// IsConnectSyntax reports whether err is a pre-network configuration
// rejection.
func IsConnectSyntax(err error) bool {
	var syntax *ConnectSyntaxError
	return errors.As(err, &syntax)
}

// IsAuthentication reports whether err indicates an authentication failure.
func IsAuthentication(err error) bool {
	return errorCategory(err) == ErrorCategoryAuthentication
}

// IsPermission reports whether err indicates insufficient access rights.
func IsPermission(err error) bool {
	return errorCategory(err) == ErrorCategoryPermission
}

// errorCategory returns the category of an error.
func errorCategory(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryUnknown
	}

	var dirErr *DirectoryError
	if errors.As(err, &dirErr) {
		return dirErr.Category
	}

	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return categorizeCode(ldapErr.ResultCode)
	}

	return categorizeGenericError(err)
}

// categorizeCode categorizes an error based on the LDAP result code.
func categorizeCode(code uint16) ErrorCategory {
	switch code {
	case ldap.LDAPResultInvalidCredentials,
		ldap.LDAPResultInappropriateAuthentication,
		ldap.LDAPResultStrongAuthRequired:
		return ErrorCategoryAuthentication

	case ldap.LDAPResultInsufficientAccessRights,
		ldap.LDAPResultUnwillingToPerform:
		return ErrorCategoryPermission

	case ldap.LDAPResultNoSuchObject,
		ldap.LDAPResultNoSuchAttribute,
		ldap.LDAPResultUndefinedAttributeType:
		return ErrorCategoryNotFound

	case ldap.LDAPResultEntryAlreadyExists,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultObjectClassViolation,
		ldap.LDAPResultNotAllowedOnNonLeaf:
		return ErrorCategoryConflict

	case ldap.LDAPResultInvalidAttributeSyntax,
		ldap.LDAPResultConstraintViolation,
		ldap.LDAPResultInvalidDNSyntax,
		ldap.LDAPResultNamingViolation,
		ldap.LDAPResultFilterError:
		return ErrorCategoryValidation

	case ldap.LDAPResultServerDown,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultBusy,
		ldap.LDAPResultTimeLimitExceeded,
		ldap.LDAPResultAdminLimitExceeded:
		return ErrorCategoryServer

	case ldap.LDAPResultConnectError,
		ldap.LDAPResultProtocolError:
		return ErrorCategoryConnection

	default:
		return ErrorCategoryUnknown
	}
}

// categorizeGenericError categorizes non-protocol errors by message.
func categorizeGenericError(err error) ErrorCategory {
	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset") {
		return ErrorCategoryConnection
	}

	if strings.Contains(errStr, "authentication") ||
		strings.Contains(errStr, "credentials") ||
		strings.Contains(errStr, "password") {
		return ErrorCategoryAuthentication
	}

	if strings.Contains(errStr, "permission") ||
		strings.Contains(errStr, "access") ||
		strings.Contains(errStr, "denied") {
		return ErrorCategoryPermission
	}

	return ErrorCategoryUnknown
}

// resultCodeMessage returns a human-readable message for an LDAP result code.
func resultCodeMessage(code uint16) string {
	switch code {
	case ldap.LDAPResultOperationsError:
		return "operations error"
	case ldap.LDAPResultProtocolError:
		return "protocol error"
	case ldap.LDAPResultTimeLimitExceeded:
		return "time limit exceeded"
	case ldap.LDAPResultSizeLimitExceeded:
		return "size limit exceeded"
	case ldap.LDAPResultAuthMethodNotSupported:
		return "authentication method not supported"
	case ldap.LDAPResultStrongAuthRequired:
		return "strong authentication required"
	case ldap.LDAPResultReferral:
		return "referral"
	case ldap.LDAPResultAdminLimitExceeded:
		return "administrative limit exceeded"
	case ldap.LDAPResultConfidentialityRequired:
		return "confidentiality required"
	case ldap.LDAPResultNoSuchAttribute:
		return "requested attribute does not exist"
	case ldap.LDAPResultUndefinedAttributeType:
		return "attribute type is not defined"
	case ldap.LDAPResultConstraintViolation:
		return "constraint violation"
	case ldap.LDAPResultAttributeOrValueExists:
		return "attribute or value already exists"
	case ldap.LDAPResultInvalidAttributeSyntax:
		return "invalid attribute syntax"
	case ldap.LDAPResultNoSuchObject:
		return "requested object does not exist"
	case ldap.LDAPResultInvalidDNSyntax:
		return "invalid DN syntax"
	case ldap.LDAPResultInappropriateAuthentication:
		return "inappropriate authentication method"
	case ldap.LDAPResultInvalidCredentials:
		return "invalid credentials"
	case ldap.LDAPResultInsufficientAccessRights:
		return "insufficient access rights"
	case ldap.LDAPResultBusy:
		return "server is busy"
	case ldap.LDAPResultUnavailable:
		return "server is unavailable"
	case ldap.LDAPResultUnwillingToPerform:
		return "server is unwilling to perform the operation"
	case ldap.LDAPResultNamingViolation:
		return "naming violation"
	case ldap.LDAPResultObjectClassViolation:
		return "object class violation"
	case ldap.LDAPResultNotAllowedOnNonLeaf:
		return "operation not allowed on non-leaf entry"
	case ldap.LDAPResultNotAllowedOnRDN:
		return "operation not allowed on RDN"
	case ldap.LDAPResultEntryAlreadyExists:
		return "entry already exists"
	case ldap.LDAPResultServerDown:
		return "server is down"
	case ldap.LDAPResultTimeout:
		return "operation timed out"
	case ldap.LDAPResultFilterError:
		return "invalid search filter"
	case ldap.LDAPResultConnectError:
		return "connection error"
	case ldap.LDAPResultNotSupported:
		return "operation not supported"
	default:
		return fmt.Sprintf("unknown directory error (code %d)", code)
	}
}
