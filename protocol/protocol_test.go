package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"luci-rpc/codec"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCallReply(t *testing.T) {
	cdc := codec.Default()

	tests := []struct {
		name    string
		body    string
		raw     string
		present bool
		status  Status
		err     string
	}{
		{name: "value", body: `{"jsonrpc":"2.0","id":1,"result":[0,"v"]}`, raw: `"v"`, present: true},
		{name: "status only", body: `{"jsonrpc":"2.0","id":1,"result":[0]}`, raw: `0`, present: true},
		{name: "ubus failure status", body: `{"jsonrpc":"2.0","id":1,"result":[6]}`, status: StatusPermissionDenied},
		{name: "result not array", body: `{"jsonrpc":"2.0","id":1,"result":{"a":1}}`},
		{name: "empty result", body: `{"jsonrpc":"2.0","id":1,"result":[]}`},
		{name: "no result", body: `{"jsonrpc":"2.0","id":1}`},
		{name: "remote error", body: `{"jsonrpc":"2.0","id":1,"error":{"code":6,"message":"Access denied"}}`,
			err: "RPC call failed with error 6: Access denied"},
		{name: "error wins over result", body: `{"jsonrpc":"2.0","id":1,"result":[0,1],"error":{"code":-32000,"message":"Object not found"}}`,
			err: "RPC call failed with error -32000: Object not found"},
		{name: "error without message ignored", body: `{"jsonrpc":"2.0","id":1,"result":[0,1],"error":{"code":5}}`, raw: `1`, present: true},
		{name: "error with zero code ignored", body: `{"jsonrpc":"2.0","id":1,"error":{"code":0,"message":"x"}}`},
		{name: "missing version", body: `{"id":1,"result":[0,"v"]}`, err: "Invalid message frame received"},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"result":[0,"v"]}`, err: "Invalid message frame received"},
		{name: "numeric version", body: `{"jsonrpc":2.0,"id":1,"result":[0,"v"]}`, err: "Invalid message frame received"},
		{name: "not an object", body: `[{"jsonrpc":"2.0"}]`, err: "Invalid message frame received"},
		{name: "not json", body: `<html>`, err: "Invalid message frame received"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeCallReply(cdc, []byte(tt.body))
			if tt.err != "" {
				require.Error(t, err)
				assert.Equal(t, tt.err, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.present, v.Present)
			assert.Equal(t, tt.status, v.Status)
			if tt.present {
				assert.JSONEq(t, tt.raw, string(v.Raw))
			}
		})
	}
}

func TestRemoteErrorIsTyped(t *testing.T) {
	_, err := DecodeCallReply(codec.Default(), []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Access denied"}}`))

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, CodeAccessDenied, remote.Code)
	assert.Equal(t, "Access denied", remote.Message)
}

func TestRemoteErrorStringCode(t *testing.T) {
	cdc := codec.Default()

	_, err := DecodeCallReply(cdc, []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":"6","message":"Access denied"}}`))
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 6, remote.Code)
	assert.EqualError(t, err, "RPC call failed with error 6: Access denied")

	tests := []struct {
		name string
		body string
	}{
		{"zero string", `{"jsonrpc":"2.0","id":1,"error":{"code":"0","message":"x"},"result":[0,1]}`},
		{"not a number", `{"jsonrpc":"2.0","id":1,"error":{"code":"oops","message":"x"},"result":[0,1]}`},
		{"empty message", `{"jsonrpc":"2.0","id":1,"error":{"code":"6","message":""},"result":[0,1]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := DecodeCallReply(cdc, []byte(tt.body))
			require.NoError(t, err)
			assert.True(t, v.Present)
		})
	}
}

func TestTransportErrorMessage(t *testing.T) {
	err := &TransportError{Status: 403, StatusText: "Forbidden"}
	assert.Equal(t, "RPC call failed with HTTP error 403: Forbidden", err.Error())

	err = &TransportError{Status: 502}
	assert.Equal(t, "RPC call failed with HTTP error 502: ?", err.Error())

	cause := errors.New("connection refused")
	err = &TransportError{Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestDecodeBatchReply(t *testing.T) {
	cdc := codec.Default()
	body := `[
		{"jsonrpc":"2.0","id":1,"result":[0,{"lan":{}}]},
		{"jsonrpc":"2.0","id":2,"error":{"code":-32601,"message":"Method not found"}}
	]`

	values, errs := DecodeBatchReply(cdc, []byte(body), 3)
	require.Len(t, values, 3)

	assert.NoError(t, errs[0])
	assert.JSONEq(t, `{"lan":{}}`, string(values[0].Raw))

	var remote *RemoteError
	require.True(t, errors.As(errs[1], &remote))
	assert.Equal(t, CodeMethodNotFound, remote.Code)

	assert.ErrorIs(t, errs[2], ErrInvalidFrame)
}

func TestDecodeBatchReplyNotArray(t *testing.T) {
	_, errs := DecodeBatchReply(codec.Default(), []byte(`{"jsonrpc":"2.0","id":1,"result":[0]}`), 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, ErrInvalidFrame)
	}
}

func TestDecodeListReply(t *testing.T) {
	cdc := codec.Default()

	list := DecodeListReply(cdc, []byte(`{"jsonrpc":"2.0","id":4,"result":["luci","network"]}`))
	require.Len(t, list, 2)
	assert.JSONEq(t, `"luci"`, string(list[0]))

	degraded := []string{
		`{"jsonrpc":"2.0","id":4,"result":{"luci":{}}}`,
		`{"jsonrpc":"1.0","id":4,"result":[]}`,
		`{"jsonrpc":"2.0","id":0,"result":["luci"]}`,
		`{"jsonrpc":"2.0","result":["luci"]}`,
		`[]`,
		`nope`,
	}
	for _, body := range degraded {
		got := DecodeListReply(cdc, []byte(body))
		assert.NotNil(t, got, body)
		assert.Empty(t, got, body)
	}
}

func TestTruthy(t *testing.T) {
	for _, raw := range []string{"", "null", "false", "0", `""`, "0.0"} {
		assert.False(t, truthy(json.RawMessage(raw)), raw)
	}
	for _, raw := range []string{"1", `"0"`, `"abc"`, "true", "12"} {
		assert.True(t, truthy(json.RawMessage(raw)), raw)
	}
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Permission denied", StatusPermissionDenied.String())
	assert.Equal(t, "Status(42)", Status(42).String())
}
