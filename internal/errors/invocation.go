// ABOUTME: Capability invocation errors and their JSON-RPC mapping
// ABOUTME: Every invocation failure reaches the wire as "invalid params" with a plain message

package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/kyhei/local-dev-insights/internal/jsonrpc"
)

// Capability kinds, as they appear in not-found messages.
const (
	KindTool     = "Tool"
	KindResource = "Resource"
	KindPrompt   = "Prompt"
)

// NotFoundError is returned when a registry has no handler for a name.
type NotFoundError struct {
	Kind string
	Name string
}

func NewNotFoundError(kind, name string) *NotFoundError {
	return &NotFoundError{Kind: kind, Name: name}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Name)
}

// MissingParamError is returned when a required parameter or argument is absent.
type MissingParamError struct {
	Message string
}

func NewMissingParamError(message string) *MissingParamError {
	return &MissingParamError{Message: message}
}

func (e *MissingParamError) Error() string {
	return e.Message
}

// InvalidParamsError is returned when params are present but cannot be decoded.
type InvalidParamsError struct {
	Err error
}

func NewInvalidParamsError(err error) *InvalidParamsError {
	return &InvalidParamsError{Err: err}
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("Invalid params: %v", e.Err)
}

func (e *InvalidParamsError) Unwrap() error {
	return e.Err
}

// InvocationError is returned when the collaborator behind a capability fails.
type InvocationError struct {
	Capability string
	Err        error
}

func NewInvocationError(capability string, err error) *InvocationError {
	return &InvocationError{Capability: capability, Err: err}
}

func (e *InvocationError) Error() string {
	return e.Err.Error()
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}

// ToJSONRPCError flattens any invocation failure to the "invalid params" code.
// The variants stay distinct in Go so callers and logs can tell them apart.
func ToJSONRPCError(err error) *jsonrpc.Error {
	return &jsonrpc.Error{
		Code:    jsonrpc.InvalidParams,
		Message: err.Error(),
	}
}

// NewMethodNotFoundError is the reply for an unknown method carrying an id.
func NewMethodNotFoundError(method string) *jsonrpc.Error {
	return &jsonrpc.Error{
		Code:    jsonrpc.MethodNotFound,
		Message: fmt.Sprintf("Method not found: %s", method),
	}
}

// NewInternalError is the reply when a result cannot be encoded.
func NewInternalError(details string) *jsonrpc.Error {
	return &jsonrpc.Error{
		Code:    jsonrpc.InternalError,
		Message: details,
	}
}
