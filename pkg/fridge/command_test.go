package fridge

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

func testSettings() Settings {
	return Settings{
		PoweredOn:   true,
		BatSaver:    BatteryHigh,
		LeftTarget:  -20,
		TempMax:     20,
		TempMin:     -20,
		LeftRetDiff: 2,
	}
}

func TestEncode(t *testing.T) {
	t.Run("Query", func(t *testing.T) {
		b, err := Encode(NewQueryCommand())
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		expected := "fefe03010200"
		result := fmt.Sprintf("%x", b)
		if result != expected {
			t.Fatalf("Fail:\n%v\n%v", result, expected)
		}
	})

	t.Run("Bind", func(t *testing.T) {
		b, err := Encode(NewBindCommand())
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		expected := "fefe030001ff"
		result := fmt.Sprintf("%x", b)
		if result != expected {
			t.Fatalf("Fail:\n%v\n%v", result, expected)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b, err := Encode(NewResetCommand())
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		expected := "fefe03040203"
		result := fmt.Sprintf("%x", b)
		if result != expected {
			t.Fatalf("Fail:\n%v\n%v", result, expected)
		}
	})

	t.Run("Set", func(t *testing.T) {
		b, err := Encode(NewSetCommand(testSettings()))
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		expected := "fefe110200010002ec14ec020000000000000400"
		result := fmt.Sprintf("%x", b)
		if result != expected {
			t.Fatalf("Fail:\n%v\n%v", result, expected)
		}
	})

	t.Run("SetLeft", func(t *testing.T) {
		b, err := Encode(NewSetLeftCommand(-20))
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		expected := "fefe0405ec02f1"
		result := fmt.Sprintf("%x", b)
		if result != expected {
			t.Fatalf("Fail:\n%v\n%v", result, expected)
		}
	})

	t.Run("SetDualZone", func(t *testing.T) {
		s := testSettings()
		s.DualZone = true
		s.RightTarget = -18
		s.RightRetDiff = 1
		b, err := Encode(NewSetCommand(s))
		if err != nil {
			t.Fatalf("Failed to encode: %s", err)
		}
		// 14 + 11 payload bytes behind the length byte
		if b[2] != 0x1c {
			t.Fatalf("Bad data length %#x", b[2])
		}
		if len(b) != 31 {
			t.Fatalf("Bad frame length %d", len(b))
		}
		if b[4+14] != 0xee {
			t.Fatalf("Bad right target byte %#x", b[4+14])
		}
	})

	t.Run("ParameterRange", func(t *testing.T) {
		_, err := Encode(NewSetLeftCommand(-200))
		var rangeErr *ParameterRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("Expected ParameterRangeError, got %v", err)
		}
		if rangeErr.Field != "temp" || rangeErr.Value != -200 {
			t.Fatalf("Bad error detail: %+v", rangeErr)
		}
	})

	t.Run("TargetOutsideDeviceRange", func(t *testing.T) {
		s := testSettings()
		s.LeftTarget = 25 // above the device's reported max of 20
		if _, err := Encode(NewSetCommand(s)); err == nil {
			t.Fatal("Expected a range error")
		}
	})
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	commands := []Command{
		NewBindCommand(),
		NewQueryCommand(),
		NewResetCommand(),
		NewSetCommand(testSettings()),
		NewSetLeftCommand(-20),
		NewSetRightCommand(5),
	}
	for _, c := range commands {
		t.Run(c.Kind.String(), func(t *testing.T) {
			b, err := Encode(c)
			if err != nil {
				t.Fatalf("Failed to encode: %s", err)
			}
			f, n := Decode(b, 0)
			if f == nil {
				t.Fatal("Failed to decode own frame")
			}
			if n != len(b) {
				t.Fatalf("Consumed %d of %d bytes", n, len(b))
			}
			if f.Cmd != byte(c.Kind) {
				t.Fatalf("Bad command code %#x", f.Cmd)
			}
			if !bytes.Equal(f.Payload, b[4:len(b)-2]) {
				t.Fatalf("Payload mismatch: %x vs %x", f.Payload, b[4:len(b)-2])
			}
		})
	}
}

func TestSignedByteLaw(t *testing.T) {
	for i := -128; i <= 127; i++ {
		if got := ToSignedByte(ToUnsignedByte(int8(i))); got != int8(i) {
			t.Fatalf("Round trip failed for %d: got %d", i, got)
		}
	}
	if ToUnsignedByte(-20) != 236 {
		t.Fatalf("-20 should encode as 236, got %d", ToUnsignedByte(-20))
	}
	if ToSignedByte(236) != -20 {
		t.Fatalf("236 should decode as -20, got %d", ToSignedByte(236))
	}
}

func TestSettingsFromSnapshot(t *testing.T) {
	var snap Snapshot
	if err := (&snap).applyStatus(statusPayloadSingle()); err != nil {
		t.Fatalf("Failed to apply: %s", err)
	}
	s := SettingsFromSnapshot(snap)
	if s.DualZone {
		t.Fatal("Single-zone snapshot produced dual-zone settings")
	}
	if s.LeftTarget != -20 || s.TempMax != 20 || s.TempMin != -20 {
		t.Fatalf("Bad settings image: %+v", s)
	}
	// The image must re-encode cleanly for the read-modify-write cycle.
	if _, err := Encode(NewSetCommand(s)); err != nil {
		t.Fatalf("Settings image does not re-encode: %s", err)
	}
}
