// Package msgs provides the fixed-layout payload codecs of L0 messages.
package msgs

// Every message type is identified by a small type tag carried in the
// packet header. Payloads are packed little-endian in declared field
// order without padding, so each type has a fixed size.
//
// Two incompatible layouts were shipped under the same tags for Move,
// Odom and ConfigMotor, so layouts are grouped into protocol versions
// and a link must agree on one Version. Version2 is the current one.
//
// Producer: L0 firmware, L1 host
// Consumer: L0 firmware, L1 host
