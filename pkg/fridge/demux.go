package fridge

import (
	log "github.com/sirupsen/logrus"
)

// maxPending bounds the carry-over buffer. A healthy stream never gets near
// this; hitting it means we are accumulating garbage and should start over.
const maxPending = 256

// Demux splits raw notification buffers into frames. A single notification
// may carry a command echo immediately followed by a status frame with no
// delimiter, and a frame may equally straddle two notifications, so bytes
// accumulate here until whole frames are available.
type Demux struct {
	buf []byte
}

// Push appends one notification payload and returns every complete frame
// now available, in arrival order.
func (d *Demux) Push(p []byte) []Frame {
	d.buf = append(d.buf, p...)

	var frames []Frame
	for len(d.buf) > 0 {
		f, n := Decode(d.buf, 0)
		if f != nil {
			frames = append(frames, *f)
			d.buf = d.buf[n:]
			continue
		}
		if n == 0 {
			// Incomplete tail; keep it for the next notification.
			break
		}
		d.buf = d.buf[n:]
	}

	if len(d.buf) > maxPending {
		log.Debugf("dropping %d bytes of unparseable notification data", len(d.buf))
		d.buf = nil
	}
	return frames
}

// Split decodes one self-contained notification buffer. Callers feeding a
// live connection want a Demux, which also handles frames fragmented across
// notifications; Split drops any incomplete tail.
func Split(buf []byte) []Frame {
	var d Demux
	return d.Push(buf)
}
