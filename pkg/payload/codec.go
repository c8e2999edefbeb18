package payload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes payloads for a store.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(p *Payload) ([]byte, error)
	Unmarshal(data []byte) (*Payload, error)
}

// Codec names.
const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// CodecByName returns the codec registered under name. An empty name
// selects JSON.
func CodecByName(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSON{}, nil
	case CodecMsgpack:
		return Msgpack{}, nil
	}
	return nil, fmt.Errorf("payload: unknown codec %q", name)
}

// Detect picks the codec for data written by either codec. JSON payloads
// always begin with an object.
func Detect(data []byte) Codec {
	if t := bytes.TrimLeft(data, " \t\r\n"); len(t) > 0 && t[0] == '{' {
		return JSON{}
	}
	return Msgpack{}
}

// JSON is the default, human-readable codec.
type JSON struct{}

func (JSON) Name() string        { return CodecJSON }
func (JSON) ContentType() string { return "application/json" }

func (JSON) Marshal(p *Payload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payload: encode json: %w", err)
	}
	return data, nil
}

func (JSON) Unmarshal(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("payload: decode json: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Msgpack is the compact binary codec.
type Msgpack struct{}

func (Msgpack) Name() string        { return CodecMsgpack }
func (Msgpack) ContentType() string { return "application/msgpack" }

func (Msgpack) Marshal(p *Payload) ([]byte, error) {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payload: encode msgpack: %w", err)
	}
	return data, nil
}

func (Msgpack) Unmarshal(data []byte) (*Payload, error) {
	var p Payload
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("payload: decode msgpack: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
