package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"luci-rpc/protocol"
)

// Call is one decoded "call" envelope as seen by a method handler.
type Call struct {
	Session string
	Object  string
	Method  string
	Args    map[string]json.RawMessage
}

// Arg decodes the named argument into v. A missing argument leaves v alone
// and reports false.
func (c *Call) Arg(name string, v any) (bool, error) {
	raw, ok := c.Args[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("argument %q: %w", name, err)
	}
	return true, nil
}

// StringArg returns a string argument or "" when it is absent or not a string.
func (c *Call) StringArg(name string) string {
	var s string
	if _, err := c.Arg(name, &s); err != nil {
		return ""
	}
	return s
}

// HandlerFunc serves one method. A nil data value produces a reply of just
// [status].
type HandlerFunc func(ctx context.Context, call *Call) (protocol.Status, any)

// Method is a handler plus the argument signature published by "list".
type Method struct {
	// Signature maps argument names to ubus type names ("string", "boolean",
	// "number", "object", "array").
	Signature map[string]string
	Handler   HandlerFunc
}

// Object is a named set of methods, like a ubus object.
type Object map[string]Method

// signature renders the object the way "list" with names reports it.
func (o Object) signature() map[string]map[string]string {
	sig := make(map[string]map[string]string, len(o))
	for name, m := range o {
		args := m.Signature
		if args == nil {
			args = map[string]string{}
		}
		sig[name] = args
	}
	return sig
}

// Register adds or replaces an object.
func (svr *Server) Register(name string, obj Object) {
	svr.mu.Lock()
	defer svr.mu.Unlock()
	svr.objects[name] = obj
}

func (svr *Server) lookup(object, method string) (Method, bool, bool) {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	obj, ok := svr.objects[object]
	if !ok {
		return Method{}, false, false
	}
	m, ok := obj[method]
	return m, true, ok
}

func (svr *Server) objectNames() []string {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	names := make([]string, 0, len(svr.objects))
	for name := range svr.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (svr *Server) signatures(names []string) map[string]map[string]map[string]string {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	out := make(map[string]map[string]map[string]string, len(names))
	for _, name := range names {
		if obj, ok := svr.objects[name]; ok {
			out[name] = obj.signature()
		}
	}
	return out
}
