package protocol

import (
	"errors"
	"fmt"
	"strings"
)

type Code int

const (
	CodeGeneralFailure   Code = -1
	CodeSuccess          Code = 0
	CodeDeviceDisallowed Code = 101
	CodeMissingParam     Code = 102
	CodeInvalidValue     Code = 103
	CodeUnexpectedParam  Code = 106
	CodeUnsupportedBasis Code = 301
)

func (c Code) String() string {
	switch c {
	case CodeGeneralFailure:
		return "GENERAL_FAILURE"
	case CodeSuccess:
		return "SUCCESS"
	case CodeDeviceDisallowed:
		return "DEVICE_DISALLOWED"
	case CodeMissingParam:
		return "MISSING_PARAM"
	case CodeInvalidValue:
		return "INVALID_VALUE"
	case CodeUnexpectedParam:
		return "UNEXPECTED_PARAM"
	case CodeUnsupportedBasis:
		return "UNSUPPORTED_BASIS"
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

var ErrDeviceDisallowed = errors.New("device disallowed")

// ValidationError is a rejected request shape. It always maps onto a response
// code; nothing is evaluated once one is raised.
type ValidationError struct {
	Code       Code
	Missing    []string
	Invalid    []string
	Unexpected []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	if len(parts) == 0 {
		return e.Code.String()
	}
	return e.Code.String() + ": " + strings.Join(parts, "; ")
}

func missing(params ...string) *ValidationError {
	return &ValidationError{Code: CodeMissingParam, Missing: params}
}

func invalid(params ...string) *ValidationError {
	return &ValidationError{Code: CodeInvalidValue, Invalid: params}
}

func unexpected(params ...string) *ValidationError {
	return &ValidationError{Code: CodeUnexpectedParam, Unexpected: params}
}

func unsupported(params ...string) *ValidationError {
	return &ValidationError{Code: CodeUnsupportedBasis, Invalid: params}
}

// CodeOf maps an error from the façade pipeline onto a response code.
func CodeOf(err error) Code {
	var ve *ValidationError
	switch {
	case err == nil:
		return CodeSuccess
	case errors.As(err, &ve):
		return ve.Code
	case errors.Is(err, ErrDeviceDisallowed):
		return CodeDeviceDisallowed
	}
	return CodeGeneralFailure
}
