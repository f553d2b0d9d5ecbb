package fridge

import (
	"bytes"
	"testing"
)

func TestSplit(t *testing.T) {
	t.Run("EchoThenStatusInOneNotification", func(t *testing.T) {
		echo, err := Encode(NewSetLeftCommand(-20))
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		status := buildFrame(0x01, statusPayloadSingle())

		frames := Split(append(append([]byte{}, echo...), status...))
		if len(frames) != 2 {
			t.Fatalf("Expected 2 frames, got %d", len(frames))
		}
		if frames[0].IsStatus() {
			t.Fatal("Echo must come first")
		}
		if frames[0].Cmd != byte(SetLeft) {
			t.Fatalf("Bad echo opcode %#x", frames[0].Cmd)
		}
		if !frames[1].IsStatus() {
			t.Fatal("Second frame must be the status report")
		}
	})

	t.Run("CorruptByteBeforeValidFrame", func(t *testing.T) {
		status := buildFrame(0x01, statusPayloadSingle())
		frames := Split(append([]byte{0xfe}, status...))
		if len(frames) != 1 || !frames[0].IsStatus() {
			t.Fatalf("Expected the valid frame to survive, got %d frames", len(frames))
		}
	})

	t.Run("GarbageOnly", func(t *testing.T) {
		if frames := Split([]byte{0x00, 0x13, 0x37, 0xfe}); len(frames) != 0 {
			t.Fatalf("Expected no frames, got %d", len(frames))
		}
	})
}

func TestDemuxFragmentation(t *testing.T) {
	status := buildFrame(0x01, statusPayloadDual())

	var d Demux
	if frames := d.Push(status[:7]); len(frames) != 0 {
		t.Fatalf("Partial frame produced %d frames", len(frames))
	}
	frames := d.Push(status[7:])
	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame after completion, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Payload, statusPayloadDual()) {
		t.Fatal("Reassembled payload differs")
	}
}

func TestDemuxDropsRunawayGarbage(t *testing.T) {
	var d Demux
	// A plausible prefix that never completes must not pin the buffer
	// forever once enough junk piles up behind it.
	junk := append([]byte{0xfe, 0xfe, 0x3f, 0x01}, make([]byte, maxPending)...)
	// All-zero tail bytes decode as resync garbage after the stalled
	// prefix is abandoned; the buffer must end up bounded either way.
	d.Push(junk[:4])
	d.Push(bytes.Repeat([]byte{0xfe, 0x00}, maxPending))
	if len(d.buf) > maxPending {
		t.Fatalf("Demux buffer grew to %d bytes", len(d.buf))
	}
}
