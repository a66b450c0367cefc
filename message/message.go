// Package message defines the JSON-RPC envelopes exchanged with a ubus endpoint.
//
// A Request is the "envelope" for every call. For the "call" method its params
// are the fixed tuple [sessionID, object, method, namedArgs]; for "list" they
// are the optional object names to introspect.
//
//	{"jsonrpc":"2.0","id":7,"method":"call","params":["<sid>","luci","host_hints",{}]}
//	{"jsonrpc":"2.0","id":7,"result":[0,{...}]}
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Version is the only protocol tag accepted in either direction.
const Version = "2.0"

const (
	MethodCall = "call"
	MethodList = "list"
)

// Args is the named-argument object sent to a remote object/method pair.
type Args map[string]any

// Request is a single call or list envelope.
//
// Object and Procedure are not serialized; they mirror params[1] and params[2]
// of a call envelope so the transport can build the request path.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`

	Object    string `json:"-"`
	Procedure string `json:"-"`
}

// NewCall builds a "call" envelope. A nil args map is sent as {}.
func NewCall(id uint64, session, object, method string, args Args) (*Request, error) {
	if args == nil {
		args = Args{}
	}
	params, err := Marshal([]any{session, object, method, args})
	if err != nil {
		return nil, fmt.Errorf("marshaling call params for %s.%s: %w", object, method, err)
	}
	return &Request{
		JSONRPC:   Version,
		ID:        id,
		Method:    MethodCall,
		Params:    params,
		Object:    object,
		Procedure: method,
	}, nil
}

// NewList builds a "list" envelope. Params are omitted when no names are given.
func NewList(id uint64, objects ...string) (*Request, error) {
	req := &Request{
		JSONRPC: Version,
		ID:      id,
		Method:  MethodList,
	}
	if len(objects) > 0 {
		params, err := Marshal(objects)
		if err != nil {
			return nil, fmt.Errorf("marshaling list params: %w", err)
		}
		req.Params = params
	}
	return req, nil
}

// Path returns the "object.method" pair of a call envelope.
func (r *Request) Path() string {
	return r.Object + "." + r.Procedure
}

// Reply is a response envelope. Every field except the version tag is kept
// raw because the frame checks are deliberately loose about their types.
type Reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// ErrorObject is the JSON-RPC error member.
type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewResult builds a successful call reply carrying [status] or [status, data].
func NewResult(id json.RawMessage, status int, data any) (*Reply, error) {
	tuple := []any{status}
	if data != nil {
		tuple = append(tuple, data)
	}
	result, err := Marshal(tuple)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Reply{JSONRPC: Version, ID: id, Result: result}, nil
}

// NewRawResult builds a reply whose result member is data as-is (list replies).
func NewRawResult(id json.RawMessage, data any) (*Reply, error) {
	result, err := Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &Reply{JSONRPC: Version, ID: id, Result: result}, nil
}

// NewError builds an error reply.
func NewError(id json.RawMessage, code int, msg string) *Reply {
	// ErrorObject always marshals
	errObj, _ := json.Marshal(ErrorObject{Code: code, Message: msg})
	return &Reply{JSONRPC: Version, ID: id, Error: errObj}
}

// Marshal is json.Marshal without HTML escaping, so uci values like
// "a <b> & c" reach rpcd as written.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
