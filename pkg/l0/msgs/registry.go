package msgs

import (
	"errors"
	"fmt"
	"sort"
)

// Version identifies a set of message layouts.
type Version int

// Protocol versions.
const (
	Version1 Version = 1
	Version2 Version = 2

	DefaultVersion = Version2
)

var (
	// ErrNotEnoughData indicates the payload is shorter than the message size.
	ErrNotEnoughData = errors.New("not enough data")
	// ErrBufferTooSmall indicates the output buffer can't hold the message.
	ErrBufferTooSmall = errors.New("buffer too small")
	// ErrLayoutMismatch indicates a message doesn't match the layout
	// registered for its type tag.
	ErrLayoutMismatch = errors.New("layout mismatch")
)

// UnknownTypeError indicates the type tag is not registered.
type UnknownTypeError struct {
	Type uint16
}

// Error implements error.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown type: %d", e.Type)
}

// UnknownVersionError indicates the protocol version is not supported.
type UnknownVersionError struct {
	Version Version
}

// Error implements error.
func (e *UnknownVersionError) Error() string {
	return fmt.Sprintf("unknown protocol version: %d", e.Version)
}

// Registry maps type tags to descriptors for one protocol version.
// It is immutable once built.
type Registry struct {
	version Version
	byType  map[uint16]*Descriptor
	byName  map[string]*Descriptor
	sorted  []*Descriptor
}

func newRegistry(v Version, descs ...*Descriptor) *Registry {
	r := &Registry{
		version: v,
		byType:  make(map[uint16]*Descriptor, len(descs)),
		byName:  make(map[string]*Descriptor, len(descs)),
	}
	for _, d := range descs {
		if _, exist := r.byType[d.Type]; exist {
			panic(fmt.Sprintf("msgs: duplicated type %d in version %d", d.Type, v))
		}
		r.byType[d.Type], r.byName[d.Name] = d, d
		r.sorted = append(r.sorted, d)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Type < r.sorted[j].Type })
	return r
}

var (
	// V1 is the registry of Version1 layouts.
	V1 = newRegistry(Version1,
		describe("Move", func() Message { return &MoveV1{} }, "x", "y", "theta"),
		describe("Odom", func() Message { return &OdomV1{} }, "num", "aux", "ddist_mm"),
		describe("Pid", func() Message { return &Pid{} }, "motor", "p", "i", "d"),
		describe("Servo", func() Message { return &Servo{} }, "servo", "pos"),
		describe("ConfigMotor", func() Message { return &ConfigMotorV1{} },
			"num", "radius", "angleDegrees", "interCoeff", "propCoeff", "diffCoeff",
			"coeff", "turnMaxSpeed", "maxSpeed", "ticksPerRotation",
			"encoderA", "encoderB", "enable", "fwd", "back"),
	)

	// V2 is the registry of Version2 layouts.
	V2 = newRegistry(Version2,
		describe("Move", func() Message { return &Move{} }, "x", "y", "theta"),
		describe("Odom", func() Message { return &Odom{} }, "num", "aux", "ddist_mm"),
		describe("Pid", func() Message { return &Pid{} }, "motor", "p", "i", "d"),
		describe("Servo", func() Message { return &Servo{} }, "servo", "pos"),
		describe("ConfigMotor", func() Message { return &ConfigMotor{} },
			"num", "radius", "angleDegrees", "interCoeff", "propCoeff", "diffCoeff",
			"coeff", "turnMaxSpeed", "maxSpeed", "ticksPerRotation"),
		describe("ConfigServo", func() Message { return &ConfigServo{} },
			"num", "channel", "speed", "minVal", "maxVal", "startPercents"),
		describe("Test", func() Message { return &Test{} }, "led"),
		describe("ConfigPinout", func() Message { return &ConfigPinout{} },
			"num", "encoderA", "encoderB", "enable", "fwd", "back"),
		describe("Echo", func() Message { return &Echo{} }, "type", "size"),
		describe("ReadPin", func() Message { return &ReadPin{} }, "pin", "value", "pullup"),
	)
)

// ForVersion gets the registry of a protocol version.
func ForVersion(v Version) (*Registry, error) {
	switch v {
	case Version1:
		return V1, nil
	case Version2:
		return V2, nil
	}
	return nil, &UnknownVersionError{Version: v}
}

// Version gets the protocol version.
func (r *Registry) Version() Version {
	return r.version
}

// Lookup gets the descriptor of a type tag.
func (r *Registry) Lookup(typ uint16) (*Descriptor, bool) {
	d, ok := r.byType[typ]
	return d, ok
}

// ByName gets the descriptor by message name.
func (r *Registry) ByName(name string) (*Descriptor, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Descriptors lists all descriptors ordered by type tag.
func (r *Registry) Descriptors() []*Descriptor {
	return append([]*Descriptor(nil), r.sorted...)
}

// Decode decodes a payload of the given type into a new message and
// returns the number of bytes consumed.
func (r *Registry) Decode(typ uint16, buf []byte) (Message, int, error) {
	d, ok := r.byType[typ]
	if !ok {
		return nil, 0, &UnknownTypeError{Type: typ}
	}
	if len(buf) < d.size {
		return nil, 0, ErrNotEnoughData
	}
	msg := d.New()
	off := 0
	for _, v := range msg.Values() {
		off += getValue(buf[off:], v)
	}
	return msg, off, nil
}

// Unmarshal decodes buf into msg. msg is left untouched on failure.
func (r *Registry) Unmarshal(buf []byte, msg Message) (int, error) {
	d, err := r.descriptorOf(msg)
	if err != nil {
		return 0, err
	}
	if len(buf) < d.size {
		return 0, ErrNotEnoughData
	}
	off := 0
	for _, v := range msg.Values() {
		off += getValue(buf[off:], v)
	}
	return off, nil
}

// Encode writes msg into buf and returns the number of bytes written.
func (r *Registry) Encode(msg Message, buf []byte) (int, error) {
	d, err := r.descriptorOf(msg)
	if err != nil {
		return 0, err
	}
	if len(buf) < d.size {
		return 0, ErrBufferTooSmall
	}
	off := 0
	for _, v := range msg.Values() {
		off += putValue(buf[off:], v)
	}
	return off, nil
}

// Marshal encodes msg into a new buffer.
func (r *Registry) Marshal(msg Message) ([]byte, error) {
	d, err := r.descriptorOf(msg)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, d.size)
	if _, err = r.Encode(msg, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// DescriptorOf gets the descriptor matching msg.
func (r *Registry) DescriptorOf(msg Message) (*Descriptor, error) {
	return r.descriptorOf(msg)
}

func (r *Registry) descriptorOf(msg Message) (*Descriptor, error) {
	d, ok := r.byType[msg.TypeID()]
	if !ok {
		return nil, &UnknownTypeError{Type: msg.TypeID()}
	}
	if !d.conforms(msg.Values()) {
		return nil, fmt.Errorf("%s (version %d): %w", d.Name, r.version, ErrLayoutMismatch)
	}
	return d, nil
}
