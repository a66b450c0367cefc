package server

import (
	"context"
	"fmt"
	"os"

	"luci-rpc/protocol"

	"gopkg.in/yaml.v3"
)

// Fixture is a set of canned method replies, typically loaded from YAML:
//
//	users:
//	  root: secret
//	objects:
//	  uci:
//	    get:
//	      key: config
//	      data:
//	        firewall: {values: {...}}
type Fixture struct {
	Users   map[string]string                  `yaml:"users"`
	Objects map[string]map[string]CannedReply `yaml:"objects"`
}

// CannedReply answers a method with a fixed status and data. When Key is set,
// Data must be a mapping and the entry named by the call's Key argument is
// returned; an unknown entry yields StatusNotFound.
type CannedReply struct {
	Status    int               `yaml:"status"`
	Key       string            `yaml:"key"`
	Signature map[string]string `yaml:"signature"`
	Data      any               `yaml:"data"`
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &f, nil
}

// LoadFixture reads a YAML fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	return ParseFixture(data)
}

// Install registers every fixture object on svr.
func (f *Fixture) Install(svr *Server) {
	for name, methods := range f.Objects {
		obj := make(Object, len(methods))
		for method, reply := range methods {
			obj[method] = Method{Signature: reply.Signature, Handler: reply.handler()}
		}
		svr.Register(name, obj)
	}
}

func (r CannedReply) handler() HandlerFunc {
	return func(ctx context.Context, call *Call) (protocol.Status, any) {
		if r.Key == "" {
			return protocol.Status(r.Status), r.Data
		}

		entries, ok := r.Data.(map[string]any)
		if !ok {
			return protocol.StatusNoData, nil
		}
		entry, ok := entries[call.StringArg(r.Key)]
		if !ok {
			return protocol.StatusNotFound, nil
		}
		return protocol.Status(r.Status), entry
	}
}
