// Package payload is the wire form of one send: the converted atomic
// objects plus the instance and definition proxies that rebuild the block
// structure on receive.
package payload

import (
	"errors"
	"fmt"

	"github.com/chazu/instancegraph/pkg/convert"
	"github.com/chazu/instancegraph/pkg/proxy"
)

// Version is the payload format written by this package.
const Version = 1

var (
	// ErrVersion is returned for payloads written by an unknown format.
	ErrVersion = errors.New("payload: unsupported version")
	// ErrInvalid is returned for structurally broken payloads.
	ErrInvalid = errors.New("payload: invalid")
)

// Payload is one transmitted selection.
type Payload struct {
	Version  int    `json:"version" msgpack:"version"`
	RootName string `json:"rootName" msgpack:"rootName"`
	Units    string `json:"units" msgpack:"units"`
	// Atomics lists every atomic application id found while unpacking, in
	// discovery order. Objects holds the ones that converted.
	Atomics           []string                         `json:"atomics" msgpack:"atomics"`
	Objects           []*convert.Object                `json:"objects" msgpack:"objects"`
	InstanceProxies   []*proxy.InstanceProxy           `json:"instanceProxies" msgpack:"instanceProxies"`
	DefinitionProxies []*proxy.InstanceDefinitionProxy `json:"definitionProxies" msgpack:"definitionProxies"`
}

// New builds a payload from a frozen unpack result and its converted atomics.
func New(rootName, units string, r *proxy.UnpackResult, objects []*convert.Object) *Payload {
	p := &Payload{
		Version:           Version,
		RootName:          rootName,
		Units:             units,
		Atomics:           []string{},
		Objects:           objects,
		InstanceProxies:   r.InstanceList(),
		DefinitionProxies: r.DefinitionList(),
	}
	if p.Objects == nil {
		p.Objects = []*convert.Object{}
	}
	for _, a := range r.AtomicList() {
		p.Atomics = append(p.Atomics, a.ApplicationID)
	}
	return p
}

// Validate checks the version and that ids are present and unique.
// References between proxies are not checked here; the bake reports them
// per item.
func (p *Payload) Validate() error {
	if p.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, p.Version)
	}
	if p.RootName == "" {
		return fmt.Errorf("%w: empty root name", ErrInvalid)
	}
	seen := make(map[string]string)
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%w: %s without id", ErrInvalid, kind)
		}
		if prev, ok := seen[id]; ok {
			return fmt.Errorf("%w: id %s used by %s and %s", ErrInvalid, id, prev, kind)
		}
		seen[id] = kind
		return nil
	}
	for _, o := range p.Objects {
		if o == nil {
			return fmt.Errorf("%w: nil object", ErrInvalid)
		}
		if err := check("object", o.ApplicationID); err != nil {
			return err
		}
	}
	for _, ip := range p.InstanceProxies {
		if ip == nil {
			return fmt.Errorf("%w: nil instance proxy", ErrInvalid)
		}
		if err := check("instance", ip.ApplicationID); err != nil {
			return err
		}
	}
	for _, dp := range p.DefinitionProxies {
		if dp == nil {
			return fmt.Errorf("%w: nil definition proxy", ErrInvalid)
		}
		if err := check("definition", dp.ApplicationID); err != nil {
			return err
		}
	}
	return nil
}

// Components returns the proxies as bake input under path, definitions
// first.
func (p *Payload) Components(path []string) []proxy.Bakeable {
	out := make([]proxy.Bakeable, 0, len(p.DefinitionProxies)+len(p.InstanceProxies))
	for _, d := range p.DefinitionProxies {
		out = append(out, proxy.Bakeable{Path: path, Component: d})
	}
	for _, ip := range p.InstanceProxies {
		out = append(out, proxy.Bakeable{Path: path, Component: ip})
	}
	return out
}

// Stats summarises a payload for logs and the CLI.
type Stats struct {
	Atomics     int `json:"atomics"`
	Objects     int `json:"objects"`
	Instances   int `json:"instances"`
	Definitions int `json:"definitions"`
	MaxDepth    int `json:"maxDepth"`
}

// Stats counts the payload's content.
func (p *Payload) Stats() Stats {
	s := Stats{
		Atomics:     len(p.Atomics),
		Objects:     len(p.Objects),
		Instances:   len(p.InstanceProxies),
		Definitions: len(p.DefinitionProxies),
	}
	for _, ip := range p.InstanceProxies {
		s.MaxDepth = max(s.MaxDepth, ip.MaxDepth)
	}
	for _, dp := range p.DefinitionProxies {
		s.MaxDepth = max(s.MaxDepth, dp.MaxDepth)
	}
	return s
}
