package fridge

import (
	log "github.com/sirupsen/logrus"
)

// Frame is one complete, checksum-validated message from the device, either
// a full status report or an echo of a command we just wrote.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// IsStatus reports whether the frame carries a status payload rather than a
// command echo. The status reply reuses the query opcode, so payload length
// is what tells a real report from a bounced query.
func (f Frame) IsStatus() bool {
	return f.Cmd == rspStatus && len(f.Payload) >= statusMinPayload
}

// Decode attempts to read one frame from buf at off, returning the frame
// and the exact byte count it occupied.
//
// Malformed data never returns an error: a bad checksum or junk at the
// offset consumes exactly 1 byte so the caller can resynchronize on the
// next preamble, and a plausible frame prefix that has not fully arrived
// consumes 0 so the caller keeps the tail for the next notification.
func Decode(buf []byte, off int) (*Frame, int) {
	rest := buf[off:]

	if len(rest) == 0 {
		return nil, 0
	}
	if rest[0] != 0xfe {
		return nil, 1
	}
	if len(rest) < 2 {
		return nil, 0
	}
	if rest[1] != 0xfe {
		return nil, 1
	}
	if len(rest) < frameOverhead+1 {
		return nil, 0
	}

	dataLen := int(rest[2])
	if dataLen < 3 || dataLen > maxDataLen {
		// Length byte can't be right, so the preamble match was noise.
		return nil, 1
	}
	total := frameOverhead + dataLen
	if len(rest) < total {
		return nil, 0
	}

	want := uint16(rest[total-2])<<8 | uint16(rest[total-1])
	if got := checksum(rest[:total-2]); got != want {
		log.Tracef("dropping frame with bad checksum: computed %#04x, frame says %#04x", got, want)
		return nil, 1
	}

	payload := make([]byte, total-2-(frameOverhead+1))
	copy(payload, rest[frameOverhead+1:total-2])
	return &Frame{Cmd: rest[frameOverhead], Payload: payload}, total
}
