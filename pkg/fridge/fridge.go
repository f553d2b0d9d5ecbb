// Package fridge implements the proprietary BLE protocol spoken by Alpicool
// and compatible OEM 12V/24V compressor fridges.
//
// The package is the protocol layer only: it builds outgoing command frames,
// splits and validates incoming notification buffers, folds status frames
// into a device snapshot, and pairs command echoes with the commands that
// caused them. Connection management and characteristic plumbing live with
// the caller; see the Transport interface.
package fridge

import "fmt"

// Preamble starts every frame in both directions.
var Preamble uint16 = 0xfefe

// Command opcodes observed in captured traffic.
const (
	cmdBind     byte = 0x00
	cmdQuery    byte = 0x01
	cmdSet      byte = 0x02
	cmdReset    byte = 0x04
	cmdSetLeft  byte = 0x05
	cmdSetRight byte = 0x06
)

// rspStatus is the opcode of the notification carrying full fridge state.
// It collides with the query opcode; payload length tells them apart.
const rspStatus byte = 0x01

// frameOverhead is the two preamble bytes plus the length byte. The length
// byte itself counts opcode + data + checksum.
const frameOverhead = 3

// maxDataLen bounds the length byte during decode. The longest real frame is
// the 31-byte dual-zone status report; anything claiming more is garbage.
const maxDataLen = 64

// checksum is the 16-bit sum of every byte preceding the checksum field,
// sent big-endian. The app calls it a CRC; it is a plain sum.
func checksum(buf []byte) uint16 {
	sum := uint16(0)

	for ; len(buf) >= 1; buf = buf[1:] {
		sum += uint16(buf[0])
	}

	return sum
}

// ToSignedByte interprets a wire byte as a two's-complement value, so a
// reported 236 becomes -20 degrees.
func ToSignedByte(b byte) int8 {
	return int8(b)
}

// ToUnsignedByte is the inverse of ToSignedByte.
func ToUnsignedByte(v int8) byte {
	return byte(v)
}

// ParameterRangeError reports a command parameter that does not fit in a
// signed wire byte. It means a caller bug, not a protocol failure.
type ParameterRangeError struct {
	Field string
	Value int
}

func (e *ParameterRangeError) Error() string {
	return fmt.Sprintf("fridge: parameter %s=%d outside signed byte range [-128,127]", e.Field, e.Value)
}

// signedByte validates and converts a host integer destined for a signed
// byte field.
func signedByte(field string, v int) (byte, error) {
	if v < -128 || v > 127 {
		return 0, &ParameterRangeError{Field: field, Value: v}
	}
	return byte(v), nil
}
