package comm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/robotalks/bang.go/pkg/l0/slip"
)

// Flags is the flag bits in the header.
type Flags uint16

// FlagRequest asks the peer to acknowledge. An ack frame carries the
// same bit with an empty payload.
const FlagRequest Flags = 1

// HeaderSize is the size of the header preceding the payload.
const HeaderSize = 8

// IsRequest checks FlagRequest.
func (f Flags) IsRequest() bool {
	return f&FlagRequest != 0
}

// Packet is a decoded frame.
type Packet struct {
	ID    uint32
	Type  uint16
	Flags Flags
	Data  []byte
}

// NewAck creates the ack of a request.
func NewAck(id uint32) *Packet {
	return &Packet{ID: id, Flags: FlagRequest}
}

// IsAck checks if the packet is an ack.
func (p *Packet) IsAck() bool {
	return p.Flags.IsRequest() && len(p.Data) == 0
}

// WantsAck checks if the packet is a request carrying data that the
// receiver should acknowledge after processing.
func (p *Packet) WantsAck() bool {
	return p.Flags.IsRequest() && len(p.Data) > 0
}

// String implements fmt.Stringer.
func (p *Packet) String() string {
	if p.IsAck() {
		return fmt.Sprintf("ack#%d", p.ID)
	}
	return fmt.Sprintf("#%d type=%d flags=%#x len=%d", p.ID, p.Type, uint16(p.Flags), len(p.Data))
}

// EncodeHeader builds the unescaped envelope of header followed by payload.
func EncodeHeader(id uint32, typ uint16, flags Flags, payload []byte) []byte {
	b := make([]byte, HeaderSize, HeaderSize+len(payload))
	putHeader(b, id, typ, flags)
	return append(b, payload...)
}

func putHeader(b []byte, id uint32, typ uint16, flags Flags) {
	binary.LittleEndian.PutUint32(b, id)
	binary.LittleEndian.PutUint16(b[4:], typ)
	binary.LittleEndian.PutUint16(b[6:], uint16(flags))
}

// Envelope returns the unescaped header and payload.
func (p *Packet) Envelope() []byte {
	return EncodeHeader(p.ID, p.Type, p.Flags, p.Data)
}

// Bytes returns the encoded frame for sending.
func (p *Packet) Bytes() []byte {
	return slip.Encode(p.Envelope())
}

// AppendTo appends the encoded frame to dst.
func (p *Packet) AppendTo(dst []byte) []byte {
	var head [HeaderSize]byte
	putHeader(head[:], p.ID, p.Type, p.Flags)
	dst = slip.AppendEscaped(dst, head[:])
	return slip.AppendEncode(dst, p.Data)
}

// WriteTo writes the encoded frame in one Write.
func (p *Packet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(p.AppendTo(make([]byte, 0, 2*(HeaderSize+len(p.Data))+1)))
	return int64(n), err
}

// DecodePacket decodes a deframed frame. Data shares the memory of b.
func DecodePacket(b []byte) (*Packet, error) {
	if len(b) < HeaderSize {
		return nil, ErrTooShort
	}
	return &Packet{
		ID:    binary.LittleEndian.Uint32(b),
		Type:  binary.LittleEndian.Uint16(b[4:]),
		Flags: Flags(binary.LittleEndian.Uint16(b[6:])),
		Data:  b[HeaderSize:],
	}, nil
}

// DecodeAck decodes a frame expected to be an ack and returns the
// acknowledged id.
func DecodeAck(b []byte) (uint32, error) {
	pkt, err := DecodePacket(b)
	if err != nil {
		return 0, err
	}
	if !pkt.Flags.IsRequest() || len(pkt.Data) != 0 {
		return 0, ErrMalformedAck
	}
	return pkt.ID, nil
}
