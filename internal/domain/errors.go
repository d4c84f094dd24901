package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable error taxonomy crossing the core's boundary.
// Adapters map kinds to wire codes; raw crypto/library errors never escape.
type ErrorKind string

const (
	// ErrInvalidRequest covers malformed or missing fields, checked before
	// any cryptographic or database work.
	ErrInvalidRequest ErrorKind = "INVALID_REQUEST"
	// ErrActivationNotFound is returned when the activation id does not resolve.
	ErrActivationNotFound ErrorKind = "ACTIVATION_NOT_FOUND"
	// ErrActivationIncorrectState signals a lifecycle precondition failure.
	ErrActivationIncorrectState ErrorKind = "ACTIVATION_INCORRECT_STATE"
	// ErrActivationExpired doubles as the generic handshake-invalid signal.
	// Bad application signature, bad device key and OTP mismatch all collapse
	// into this kind so callers get no verification oracle.
	ErrActivationExpired     ErrorKind = "ACTIVATION_EXPIRED"
	ErrInvalidSignature      ErrorKind = "INVALID_SIGNATURE"
	ErrInvalidKeyFormat      ErrorKind = "INVALID_KEY_FORMAT"
	ErrGenericCryptography   ErrorKind = "GENERIC_CRYPTOGRAPHY_ERROR"
	ErrInvalidCryptoProvider ErrorKind = "INVALID_CRYPTO_PROVIDER"
	ErrMissingMasterKey      ErrorKind = "MISSING_MASTER_ENCRYPTION_KEY"
	ErrUnsupportedEncryption ErrorKind = "UNSUPPORTED_ENCRYPTION_MODE"
	ErrUnableToGenerateToken ErrorKind = "UNABLE_TO_GENERATE_TOKEN"
	ErrInvalidApplication    ErrorKind = "INVALID_APPLICATION"
	ErrRecoveryCodeInvalid   ErrorKind = "RECOVERY_CODE_INVALID"
	ErrUnauthorized          ErrorKind = "UNAUTHORIZED"
	ErrUnknown               ErrorKind = "UNKNOWN_ERROR"
)

// Error is the single error type carried by every core operation.
// Rollback tells the transaction-boundary caller whether a partial database
// mutation must be undone, or whether the failure happened purely in
// pre-persistence computation and committed rows should stay.
type Error struct {
	Kind     ErrorKind
	Message  string
	Rollback bool
	cause    error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Errf builds a non-rollback taxonomy error.
func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// RollbackErrf builds an error that forces the enclosing transaction to roll back.
func RollbackErrf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Rollback: true}
}

// WrapErr attaches a lower-level cause without leaking it into Message.
func WrapErr(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// KindOf extracts the taxonomy kind, defaulting to ErrUnknown for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnknown
}

// IsKind reports whether err carries the given taxonomy kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// RollbackRequired reports whether the transaction boundary must undo writes.
// Unknown errors roll back: an unexpected failure must not persist half-state.
func RollbackRequired(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Rollback
	}
	return true
}
