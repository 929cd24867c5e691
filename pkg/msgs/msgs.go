// Package msgs defines the messages published by meters.
package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"
)

// Reading is a single decoded value of a meter channel.
type Reading struct {
	Meter   string  `protobuf:"bytes,1,opt,name=meter,proto3" json:"meter,omitempty"`
	Channel string  `protobuf:"bytes,2,opt,name=channel,proto3" json:"channel,omitempty"`
	Value   float32 `protobuf:"fixed32,3,opt,name=value,proto3" json:"value"`
	Unit    string  `protobuf:"bytes,4,opt,name=unit,proto3" json:"unit,omitempty"`
	// Timestamp is in Unix nanoseconds.
	Timestamp            int64    `protobuf:"varint,5,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *Reading) Reset() { *m = Reading{} }

// String implements proto.Message.
func (m *Reading) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Reading) ProtoMessage() {}

// Time converts Timestamp.
func (m *Reading) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// Status carries the decoder counters of a meter.
type Status struct {
	Meter                string   `protobuf:"bytes,1,opt,name=meter,proto3" json:"meter,omitempty"`
	Bytes                uint64   `protobuf:"varint,2,opt,name=bytes,proto3" json:"bytes"`
	Packets              uint64   `protobuf:"varint,3,opt,name=packets,proto3" json:"packets"`
	ChecksumErrors       uint64   `protobuf:"varint,4,opt,name=checksum_errors,json=checksumErrors,proto3" json:"checksum_errors"`
	ResyncErrors         uint64   `protobuf:"varint,5,opt,name=resync_errors,json=resyncErrors,proto3" json:"resync_errors"`
	Requests             uint64   `protobuf:"varint,6,opt,name=requests,proto3" json:"requests"`
	Timestamp            int64    `protobuf:"varint,7,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// ProtoMessage implements proto.Message.
func (*Status) ProtoMessage() {}

// Meta describes a meter, published as JSON.
type Meta struct {
	Description string            `json:"description,omitempty"`
	Layout      string            `json:"layout"`
	Channels    []string          `json:"channels"`
	Labels      map[string]string `json:"labels,omitempty"`
}

// Encode encodes a message to bytes.
func Encode(msg proto.Message) ([]byte, error) {
	return proto.Marshal(msg)
}

// DecodeReading decodes a Reading.
func DecodeReading(data []byte) (*Reading, error) {
	var r Reading
	if err := proto.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DecodeStatus decodes a Status.
func DecodeStatus(data []byte) (*Status, error) {
	var s Status
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
