// Package comm provides L0 protocol support.
package comm

// L0 protocol is communicated between L0 firmware and L1 host over a
// peer-to-peer byte stream (e.g. serial port). Each message is one SLIP
// frame carrying an 8-byte little-endian header (id, type, flags) followed
// by the payload. There is no checksum. A corrupted frame is dropped and
// the stream resynchronizes on the next frame terminator.
//
// A frame with FlagRequest asks the peer for an acknowledgement, which
// is a FlagRequest frame with the same id and an empty payload.
//
// Channel is the host endpoint running its I/O on a goroutine. Link is the
// firmware endpoint polled from a single cooperative loop.
//
// Producer: L0 firmware, L1 host
// Consumer: L0 firmware, L1 host
