// ABOUTME: Line codec for JSON-RPC envelopes
// ABOUTME: Parses inbound lines and renders responses as single compact lines

package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseFailure means a line could not be read as a request. It never carries
// an id, so the transport cannot answer it.
type ParseFailure struct {
	Reason string
	Err    error
}

func (e *ParseFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse failure: %s: %v", e.Reason, e.Err)
	}
	return "parse failure: " + e.Reason
}

func (e *ParseFailure) Unwrap() error {
	return e.Err
}

// Parse decodes one line into a Request.
func Parse(line []byte) (*Request, error) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ParseFailure{Reason: "not a JSON object"}
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, &ParseFailure{Reason: "malformed JSON", Err: err}
	}

	if req.JSONRPC != Version {
		return nil, &ParseFailure{Reason: fmt.Sprintf("unsupported jsonrpc tag %q", req.JSONRPC)}
	}
	if req.Method == "" {
		return nil, &ParseFailure{Reason: "missing method"}
	}
	if !req.IsNotification() && !validID(req.ID) {
		return nil, &ParseFailure{Reason: fmt.Sprintf("invalid id %s", string(req.ID))}
	}

	return &req, nil
}

// validID accepts null, numbers and strings.
func validID(id json.RawMessage) bool {
	switch c := id[0]; {
	case c == 'n':
		return string(id) == "null"
	case c == '"':
		return true
	case c == '-' || (c >= '0' && c <= '9'):
		return true
	default:
		return false
	}
}

// Serialize renders a response as one line without the trailing newline.
func Serialize(resp *Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return data, nil
}

// NewResult builds a success response echoing id.
func NewResult(id json.RawMessage, result interface{}) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Result:  data,
	}, nil
}

// NewError builds an error response echoing id.
func NewError(id json.RawMessage, rpcErr *Error) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   rpcErr,
	}
}
