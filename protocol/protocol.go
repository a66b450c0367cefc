// Package protocol verifies ubus JSON-RPC reply frames and classifies failures.
//
// A call reply is accepted only when the body is a JSON object whose jsonrpc
// member is "2.0". Inside a valid frame an error member wins over a result;
// a result is only meaningful when it is an array led by the success status 0:
//
//	{"jsonrpc":"2.0","id":1,"result":[0,{"a":1}]}   -> {"a":1}
//	{"jsonrpc":"2.0","id":1,"result":[0]}           -> 0
//	{"jsonrpc":"2.0","id":1,"result":[6]}           -> absent (status 6)
//	{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Access denied"}}
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"luci-rpc/codec"
	"luci-rpc/message"
)

// ErrInvalidFrame is returned for bodies that are not a well-formed envelope.
var ErrInvalidFrame = errors.New("Invalid message frame received")

// TransportError is a failed HTTP exchange: either a non-2xx response or a
// request that never produced one (Err set, Status 0).
type TransportError struct {
	Status     int
	StatusText string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil && e.Status == 0 {
		return fmt.Sprintf("RPC call failed: %v", e.Err)
	}
	text := e.StatusText
	if text == "" {
		text = "?"
	}
	return fmt.Sprintf("RPC call failed with HTTP error %d: %s", e.Status, text)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is an error object reported by the remote end.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("RPC call failed with error %d: %s", e.Code, e.Message)
}

// Value is the decoded payload of one call reply.
type Value struct {
	// Raw is result[1], or the literal 0 when the reply carried only the status.
	Raw json.RawMessage
	// Present is false when the frame had no usable result.
	Present bool
	// Status is result[0] when it was a number.
	Status Status
}

var zeroValue = json.RawMessage("0")

// DecodeCallReply verifies a single call reply body.
func DecodeCallReply(cdc codec.Codec, body []byte) (Value, error) {
	if !isObject(body) {
		return Value{}, ErrInvalidFrame
	}

	var reply message.Reply
	if err := cdc.Decode(body, &reply); err != nil {
		return Value{}, ErrInvalidFrame
	}
	return DecodeReply(cdc, &reply)
}

// DecodeReply applies the frame checks to an already decoded envelope.
func DecodeReply(cdc codec.Codec, reply *message.Reply) (Value, error) {
	if reply.JSONRPC != message.Version {
		return Value{}, ErrInvalidFrame
	}

	if remote := remoteError(cdc, reply.Error); remote != nil {
		return Value{}, remote
	}

	var tuple []json.RawMessage
	if len(reply.Result) == 0 || cdc.Decode(reply.Result, &tuple) != nil || len(tuple) == 0 {
		return Value{}, nil
	}

	var status float64
	if err := cdc.Decode(tuple[0], &status); err != nil {
		return Value{}, nil
	}
	if status != 0 {
		return Value{Status: Status(status)}, nil
	}

	if len(tuple) > 1 {
		return Value{Raw: tuple[1], Present: true}, nil
	}
	return Value{Raw: zeroValue, Present: true}, nil
}

// remoteError returns the error member when it carries a non-zero code and
// a non-empty message; anything less is ignored. Some rpcd plugins send the
// code as a string, so "6" counts like 6.
func remoteError(cdc codec.Codec, raw json.RawMessage) *RemoteError {
	if !isObject(raw) {
		return nil
	}
	var obj struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
	}
	if cdc.Decode(raw, &obj) != nil {
		return nil
	}
	var msg string
	code, ok := errorCode(cdc, obj.Code)
	if !ok || code == 0 {
		return nil
	}
	if cdc.Decode(obj.Message, &msg) != nil || msg == "" {
		return nil
	}
	return &RemoteError{Code: int(code), Message: msg}
}

// errorCode reads a numeric code, or a string holding an integer.
func errorCode(cdc codec.Codec, raw json.RawMessage) (float64, bool) {
	var code float64
	if cdc.Decode(raw, &code) == nil {
		return code, true
	}
	var text string
	if cdc.Decode(raw, &text) != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return float64(n), true
}

// DecodeBatchReply splits a batch reply into per-call outcomes correlated by
// position. A body that is not an array fails every slot with
// ErrInvalidFrame; slots missing from a short reply fail the same way.
func DecodeBatchReply(cdc codec.Codec, body []byte, n int) ([]Value, []error) {
	values := make([]Value, n)
	errs := make([]error, n)

	var frames []json.RawMessage
	if !isArray(body) || cdc.Decode(body, &frames) != nil {
		for i := range errs {
			errs[i] = ErrInvalidFrame
		}
		return values, errs
	}

	for i := 0; i < n; i++ {
		if i >= len(frames) {
			errs[i] = ErrInvalidFrame
			continue
		}
		values[i], errs[i] = DecodeCallReply(cdc, frames[i])
	}
	return values, errs
}

// DecodeListReply returns the result array of a list reply, or an empty
// slice when the frame is malformed. It never fails.
func DecodeListReply(cdc codec.Codec, body []byte) []json.RawMessage {
	empty := []json.RawMessage{}

	if !isObject(body) {
		return empty
	}
	var reply message.Reply
	if cdc.Decode(body, &reply) != nil {
		return empty
	}
	if reply.JSONRPC != message.Version || !truthy(reply.ID) || !isArray(reply.Result) {
		return empty
	}

	var list []json.RawMessage
	if cdc.Decode(reply.Result, &list) != nil {
		return empty
	}
	return list
}

func firstByte(raw []byte) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isObject(raw []byte) bool {
	return firstByte(raw) == '{'
}

func isArray(raw []byte) bool {
	return firstByte(raw) == '['
}

// truthy reports whether a raw id would pass a boolean test: present and not
// null, false, 0 or "".
func truthy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0
	}
	return true
}
