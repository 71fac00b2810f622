// Package slip implements SLIP style byte stuffing used to delimit
// frames on the L0 serial link.
package slip

import "errors"

// Protocol constants, fixed for the lifetime of a link.
const (
	END        byte = 0xC0
	ESC        byte = 0xDB
	EscapedEnd byte = 0xDC
	EscapedEsc byte = 0xDD
)

// DefaultMaxFrame is the cap of a growing decoder when none is specified.
const DefaultMaxFrame = 20 * 1024

var (
	// ErrDoubleEscape indicates ESC followed by another ESC.
	ErrDoubleEscape = errors.New("slip: double escape")
	// ErrInvalidEscape indicates ESC followed by a byte other than the two markers.
	ErrInvalidEscape = errors.New("slip: invalid escape")
	// ErrUnterminatedEscape indicates input ended right after ESC.
	ErrUnterminatedEscape = errors.New("slip: unterminated escape")
	// ErrBufferOverflow indicates a frame exceeds the decoder capacity.
	ErrBufferOverflow = errors.New("slip: buffer overflow")
	// ErrNoTerminator indicates input ended in the middle of a frame.
	ErrNoTerminator = errors.New("slip: no terminator")
)

// Encode escapes payload and appends the terminator.
func Encode(payload []byte) []byte {
	return AppendEncode(make([]byte, 0, len(payload)+len(payload)/16+2), payload)
}

// AppendEncode appends the encoded payload to dst.
func AppendEncode(dst, payload []byte) []byte {
	return append(AppendEscaped(dst, payload), END)
}

// AppendEscaped appends escaped bytes to dst without the terminator, so a
// frame can be encoded from several pieces.
func AppendEscaped(dst, p []byte) []byte {
	for _, b := range p {
		switch b {
		case END:
			dst = append(dst, ESC, EscapedEnd)
		case ESC:
			dst = append(dst, ESC, EscapedEsc)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// DecodeAll decodes a complete byte stream in one shot. Corrupted frames are
// skipped and the first error encountered is returned along with every frame
// which decoded successfully. Trailing bytes without a terminator are
// discarded and reported.
func DecodeAll(stream []byte) (frames [][]byte, err error) {
	d := NewGrowingDecoder(len(stream))
	d.Write(stream, func(frame []byte) {
		frames = append(frames, frame)
	}, func(e error) {
		if err == nil {
			err = e
		}
	})
	if e := d.Finish(); err == nil {
		err = e
	}
	return
}
