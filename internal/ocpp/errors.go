package ocpp

import (
	"encoding/json"
	"fmt"
)

// ErrorCode is an OCPP CALL_ERROR code.
type ErrorCode string

const (
	ErrorNotImplemented                ErrorCode = "NotImplemented"
	ErrorNotSupported                  ErrorCode = "NotSupported"
	ErrorInternal                      ErrorCode = "InternalError"
	ErrorProtocol                      ErrorCode = "ProtocolError"
	ErrorSecurity                      ErrorCode = "SecurityError"
	ErrorFormationViolation            ErrorCode = "FormationViolation" // 1.6 spelling
	ErrorFormatViolation               ErrorCode = "FormatViolation"    // 2.0.1 spelling
	ErrorPropertyConstraintViolation   ErrorCode = "PropertyConstraintViolation"
	ErrorOccurrenceConstraintViolation ErrorCode = "OccurrenceConstraintViolation"
	ErrorTypeConstraintViolation       ErrorCode = "TypeConstraintViolation"
	ErrorGeneric                       ErrorCode = "GenericError"
	ErrorMessageTypeNotSupported       ErrorCode = "MessageTypeNotSupported"
	ErrorRPCFrameworkError             ErrorCode = "RpcFrameworkError"
)

// FormatErrorCode returns the malformed-payload error code in the spelling
// the given protocol version uses on the wire.
func FormatErrorCode(v Version) ErrorCode {
	if v == V16 {
		return ErrorFormationViolation
	}
	return ErrorFormatViolation
}

// Error is an OCPP-level error carried on the wire as a CALL_ERROR frame.
type Error struct {
	Code        ErrorCode
	Description string
	Details     json.RawMessage
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// NewError builds an OCPP error with a description.
func NewError(code ErrorCode, description string) *Error {
	return &Error{Code: code, Description: description}
}

// AsError extracts an *Error from err, or wraps err as a GenericError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*Error); ok {
		return oe
	}
	return &Error{Code: ErrorGeneric, Description: err.Error()}
}
