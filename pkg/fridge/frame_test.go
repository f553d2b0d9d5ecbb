package fridge

import (
	"bytes"
	"testing"
)

// buildFrame assembles a device-style frame around data, checksummed with
// the protocol's own algorithm.
func buildFrame(cmd byte, data []byte) []byte {
	b := []byte{0xfe, 0xfe, byte(len(data) + 3), cmd}
	b = append(b, data...)
	sum := checksum(b)
	return append(b, byte(sum>>8), byte(sum))
}

// statusPayloadSingle is a captured-shape single-zone report: powered on,
// battery saver high, target -20, fridge at -18, 100% battery at 12.6V.
func statusPayloadSingle() []byte {
	return []byte{
		0x00, 0x01, 0x00, 0x02, // locked, on, mode, batSaver
		0xec, 0x14, 0xec, 0x02, // target -20, max 20, min -20, retDiff 2
		0x00, 0x00, // startDelay, unit
		0x00, 0x00, 0x00, 0x00, // temperature compensation
		0xee,             // current temp -18
		0x64, 0x0c, 0x06, // battery 100%, 12.6V
	}
}

func statusPayloadDual() []byte {
	p := statusPayloadSingle()
	p = append(p,
		0xf1, 0x00, 0x00, 0x01, // right target -15, pad, pad, retDiff 1
		0x00, 0x00, 0x00, 0x00, // right temperature compensation
		0xf4, // right current -12
		0x03, // running status
	)
	return p
}

func TestDecode(t *testing.T) {
	t.Run("StatusFrame", func(t *testing.T) {
		raw := buildFrame(0x01, statusPayloadSingle())
		f, n := Decode(raw, 0)
		if f == nil {
			t.Fatal("Failed to decode status frame")
		}
		if n != len(raw) {
			t.Fatalf("Consumed %d of %d bytes", n, len(raw))
		}
		if !f.IsStatus() {
			t.Fatal("Status frame not recognized as status")
		}
		if ToSignedByte(f.Payload[14]) != -18 {
			t.Fatalf("Bad current temp byte %#x", f.Payload[14])
		}
	})

	t.Run("KnownGoldenFrame", func(t *testing.T) {
		raw := buildFrame(0x01, statusPayloadSingle())
		expected := []byte{
			0xfe, 0xfe, 0x15, 0x01,
			0x00, 0x01, 0x00, 0x02, 0xec, 0x14, 0xec, 0x02, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00, 0xee, 0x64, 0x0c, 0x06,
			0x05, 0x67,
		}
		if !bytes.Equal(raw, expected) {
			t.Fatalf("Fail:\n% x\n% x", raw, expected)
		}
	})

	t.Run("QueryEchoIsNotStatus", func(t *testing.T) {
		// A bounced query shares the status opcode but has no payload.
		f, _ := Decode(QueryPacket, 0)
		if f == nil {
			t.Fatal("Failed to decode query packet")
		}
		if f.IsStatus() {
			t.Fatal("Empty query echo misread as a status frame")
		}
	})

	t.Run("BadChecksumConsumesOneByte", func(t *testing.T) {
		raw := buildFrame(0x01, statusPayloadSingle())
		raw[10] ^= 0xff
		f, n := Decode(raw, 0)
		if f != nil {
			t.Fatal("Corrupt frame decoded")
		}
		if n != 1 {
			t.Fatalf("Expected 1 byte consumed for resync, got %d", n)
		}
	})

	t.Run("ResyncAfterLeadingGarbage", func(t *testing.T) {
		valid := buildFrame(0x01, statusPayloadSingle())
		for _, junk := range []byte{0xaa, 0xfe} {
			raw := append([]byte{junk}, valid...)
			off := 0
			var f *Frame
			for f == nil {
				var n int
				f, n = Decode(raw, off)
				if f == nil && n != 1 {
					t.Fatalf("Stalled at offset %d (junk %#x)", off, junk)
				}
				off += n
			}
			if !f.IsStatus() {
				t.Fatalf("Recovered frame is wrong (junk %#x)", junk)
			}
		}
	})

	t.Run("TruncatedFrameConsumesNothing", func(t *testing.T) {
		raw := buildFrame(0x01, statusPayloadSingle())
		for _, cut := range []int{1, 3, 10, len(raw) - 1} {
			f, n := Decode(raw[:cut], 0)
			if f != nil || n != 0 {
				t.Fatalf("Truncation at %d: frame=%v consumed=%d", cut, f, n)
			}
		}
	})

	t.Run("AbsurdLengthByte", func(t *testing.T) {
		raw := []byte{0xfe, 0xfe, 0xff, 0x01, 0x00}
		f, n := Decode(raw, 0)
		if f != nil || n != 1 {
			t.Fatalf("Expected resync on absurd length, got frame=%v consumed=%d", f, n)
		}
	})
}
