package msgs

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the primitive kind of a field on the wire.
type Kind int

// Field kinds.
const (
	Int8 Kind = iota + 1
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Float32
)

// Size returns the byte width of the kind.
func (k Kind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	}
	return 0
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Int8:
		return "i8"
	case Uint8:
		return "u8"
	case Int16:
		return "i16"
	case Uint16:
		return "u16"
	case Int32:
		return "i32"
	case Uint32:
		return "u32"
	case Float32:
		return "f32"
	}
	return "invalid"
}

// Field describes one field of a message.
type Field struct {
	Name string
	Kind Kind
}

// Message is a fixed-layout message carried in a packet payload.
type Message interface {
	// TypeID is the message type tag.
	TypeID() uint16
	// Values returns pointers to the fields in wire order.
	Values() []interface{}
}

// Descriptor is the static description of a message layout.
type Descriptor struct {
	Type   uint16
	Name   string
	Fields []Field

	size  int
	newFn func() Message
}

// Size is the fixed byte size of the payload, which is also the minimum
// length required for decoding.
func (d *Descriptor) Size() int {
	return d.size
}

// New creates a zero message of this type.
func (d *Descriptor) New() Message {
	return d.newFn()
}

// describe builds a Descriptor from a constructor and field names.
// It panics on inconsistency as descriptors are only built during init.
func describe(name string, newFn func() Message, names ...string) *Descriptor {
	proto := newFn()
	values := proto.Values()
	if len(values) != len(names) {
		panic(fmt.Sprintf("msgs: %s has %d fields, %d names", name, len(values), len(names)))
	}
	d := &Descriptor{Type: proto.TypeID(), Name: name, newFn: newFn}
	for n, v := range values {
		k := kindOf(v)
		if k == 0 {
			panic(fmt.Sprintf("msgs: %s.%s has unsupported type %T", name, names[n], v))
		}
		d.Fields = append(d.Fields, Field{Name: names[n], Kind: k})
		d.size += k.Size()
	}
	return d
}

func kindOf(v interface{}) Kind {
	switch v.(type) {
	case *int8:
		return Int8
	case *uint8:
		return Uint8
	case *int16:
		return Int16
	case *uint16:
		return Uint16
	case *int32:
		return Int32
	case *uint32:
		return Uint32
	case *float32:
		return Float32
	}
	return 0
}

// conforms checks msg has the layout of d.
func (d *Descriptor) conforms(values []interface{}) bool {
	if len(values) != len(d.Fields) {
		return false
	}
	for n, v := range values {
		if kindOf(v) != d.Fields[n].Kind {
			return false
		}
	}
	return true
}

func putValue(b []byte, v interface{}) int {
	switch p := v.(type) {
	case *int8:
		b[0] = byte(*p)
		return 1
	case *uint8:
		b[0] = *p
		return 1
	case *int16:
		binary.LittleEndian.PutUint16(b, uint16(*p))
		return 2
	case *uint16:
		binary.LittleEndian.PutUint16(b, *p)
		return 2
	case *int32:
		binary.LittleEndian.PutUint32(b, uint32(*p))
		return 4
	case *uint32:
		binary.LittleEndian.PutUint32(b, *p)
		return 4
	case *float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(*p))
		return 4
	}
	return 0
}

func getValue(b []byte, v interface{}) int {
	switch p := v.(type) {
	case *int8:
		*p = int8(b[0])
		return 1
	case *uint8:
		*p = b[0]
		return 1
	case *int16:
		*p = int16(binary.LittleEndian.Uint16(b))
		return 2
	case *uint16:
		*p = binary.LittleEndian.Uint16(b)
		return 2
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(b))
		return 4
	case *uint32:
		*p = binary.LittleEndian.Uint32(b)
		return 4
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
		return 4
	}
	return 0
}
