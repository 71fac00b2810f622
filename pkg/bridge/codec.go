package bridge

import (
	"errors"
	"fmt"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/bang.go/pkg/l0/msgs"
)

var (
	// ErrUnknownMessage indicates a message name not in the registry.
	ErrUnknownMessage = errors.New("unknown message")
	// ErrBadField indicates a field which is unknown or not a number.
	ErrBadField = errors.New("bad field")
)

// ToStruct converts msg into a Struct with a number per field.
func ToStruct(r *msgs.Registry, msg msgs.Message) (*structpb.Struct, error) {
	d, err := r.DescriptorOf(msg)
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(d.Fields))}
	for n, v := range msg.Values() {
		s.Fields[d.Fields[n].Name] = numberValue(msgs.FieldFloat(v))
	}
	return s, nil
}

// FromStruct builds the message called name from s. Absent fields are
// zero.
func FromStruct(r *msgs.Registry, name string, s *structpb.Struct) (msgs.Message, error) {
	d, ok := r.ByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, name)
	}
	msg := d.New()
	values := msg.Values()
	for key, val := range s.GetFields() {
		n := d.FieldIndex(key)
		if n < 0 {
			return nil, fmt.Errorf("%w: %s.%s", ErrBadField, name, key)
		}
		num, ok := val.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is not a number", ErrBadField, name, key)
		}
		if err := msgs.SetFloat(values[n], num.NumberValue); err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", ErrBadField, name, key, err)
		}
	}
	return msg, nil
}

// EncodeMessage encodes msg as a serialized Struct.
func EncodeMessage(r *msgs.Registry, msg msgs.Message) ([]byte, error) {
	s, err := ToStruct(r, msg)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

// DecodeMessage decodes a serialized Struct into the message called name.
func DecodeMessage(r *msgs.Registry, name string, payload []byte) (msgs.Message, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return FromStruct(r, name, &s)
}

// Ack is the result of a relayed command.
type Ack struct {
	OK    bool
	Error string
}

// EncodeAck serializes an Ack as a Struct.
func EncodeAck(err error) ([]byte, error) {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		"ok": {Kind: &structpb.Value_BoolValue{BoolValue: err == nil}},
	}}
	if err != nil {
		s.Fields["error"] = &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: err.Error()}}
	}
	return proto.Marshal(s)
}

// DecodeAck parses a serialized Ack.
func DecodeAck(payload []byte) (*Ack, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(payload, &s); err != nil {
		return nil, err
	}
	return &Ack{
		OK:    s.GetFields()["ok"].GetBoolValue(),
		Error: s.GetFields()["error"].GetStringValue(),
	}, nil
}

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}
