package protocol

import "fmt"

// Status is a ubus status code as carried in result[0] of a call reply.
type Status int

const (
	StatusOK Status = iota
	StatusInvalidCommand
	StatusInvalidArgument
	StatusMethodNotFound
	StatusNotFound
	StatusNoData
	StatusPermissionDenied
	StatusTimeout
	StatusNotSupported
	StatusUnknownError
	StatusConnectionFailed
)

var statusNames = map[Status]string{
	StatusOK:               "Success",
	StatusInvalidCommand:   "Invalid command",
	StatusInvalidArgument:  "Invalid argument",
	StatusMethodNotFound:   "Method not found",
	StatusNotFound:         "Not found",
	StatusNoData:           "No data",
	StatusPermissionDenied: "Permission denied",
	StatusTimeout:          "Timeout",
	StatusNotSupported:     "Operation not supported",
	StatusUnknownError:     "Unknown error",
	StatusConnectionFailed: "Connection failed",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// JSON-RPC error codes used by uhttpd's ubus handler.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeObjectNotFound = -32000
	CodeAccessDenied   = -32002
)
