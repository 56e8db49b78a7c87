// Package assignment provides visitor assignment stores: where a visitor's
// sticky variant or exclusion for each split test is recorded.
//
//   - Cookie: one cookie per test, scoped to a single HTTP request/response.
//   - Memory: in-process scopes keyed by visitor id (tests, single node apps).
//   - Redis: a hash per session shared by every replica.
package assignment

import (
	"fmt"

	"github.com/unkn0wn-root/variantcache/codec"
	"google.golang.org/protobuf/types/known/structpb"
)

// Policy resolves two requests deciding for the same undecided visitor.
type Policy uint8

const (
	// FirstWriteWins keeps the first recorded decision; later writes are no-ops.
	FirstWriteWins Policy = iota
	// LastWriteWins lets a later write replace the record.
	LastWriteWins
)

func (p Policy) String() string {
	if p == LastWriteWins {
		return "last_write_wins"
	}
	return "first_write_wins"
}

// ParsePolicy maps a config value to a Policy. "" is FirstWriteWins.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "first_write_wins", "first":
		return FirstWriteWins, nil
	case "last_write_wins", "last":
		return LastWriteWins, nil
	}
	return 0, fmt.Errorf("assignment: unknown policy %q", s)
}

// Record is the persisted form of a decision. A record that exists but has
// neither field set means the visitor was seen without being decided.
type Record struct {
	Variant  string `json:"v,omitempty" msgpack:"v,omitempty" cbor:"1,keyasint,omitempty"`
	Excluded bool   `json:"x,omitempty" msgpack:"x,omitempty" cbor:"2,keyasint,omitempty"`
}

func (r Record) decided() bool { return r.Excluded || r.Variant != "" }

// DefaultMaxDecode bounds record payloads read back from clients.
const DefaultMaxDecode = 256

// CodecByName returns the record codec for a config value. "" is CBOR.
func CodecByName(name string) (codec.Codec[Record], error) {
	switch name {
	case "", "cbor":
		return codec.NewCBOR[Record](true)
	case "msgpack":
		return codec.Msgpack[Record]{}, nil
	case "json":
		return codec.JSON[Record]{}, nil
	case "protobuf", "proto":
		return NewProtoCodec(), nil
	}
	return nil, fmt.Errorf("assignment: unknown codec %q", name)
}

// ProtoCodec stores records as a google.protobuf.Struct, for hosts that
// already exchange visitor state as protobuf.
type ProtoCodec struct {
	inner codec.Protobuf[*structpb.Struct]
}

var _ codec.Codec[Record] = ProtoCodec{}

func NewProtoCodec() ProtoCodec {
	return ProtoCodec{inner: codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })}
}

func (c ProtoCodec) Encode(r Record) ([]byte, error) {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, 2)}
	if r.Variant != "" {
		s.Fields["v"] = structpb.NewStringValue(r.Variant)
	}
	if r.Excluded {
		s.Fields["x"] = structpb.NewBoolValue(true)
	}
	return c.inner.Encode(s)
}

func (c ProtoCodec) Decode(b []byte) (Record, error) {
	s, err := c.inner.Decode(b)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Variant:  s.GetFields()["v"].GetStringValue(),
		Excluded: s.GetFields()["x"].GetBoolValue(),
	}, nil
}
