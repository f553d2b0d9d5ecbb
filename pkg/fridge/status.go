package fridge

import "fmt"

// Status payload sizes: single-zone units report 18 data bytes after the
// opcode, dual-zone units at least 28. The checksum is already stripped by
// Decode.
const (
	statusMinPayload  = 18
	statusDualPayload = 28
)

// RunMode is the compressor profile. Max pulls down at full speed, Eco
// trades pull-down speed for input power.
type RunMode byte

const (
	ModeMax RunMode = 0
	ModeEco RunMode = 1
)

func (m RunMode) String() string {
	if m == ModeEco {
		return "eco"
	}
	return "max"
}

// BatteryProtection is the input-voltage cutoff profile, the H/M/L menu on
// the fridge keypad.
type BatteryProtection byte

const (
	BatteryLow BatteryProtection = iota
	BatteryMedium
	BatteryHigh
)

func (b BatteryProtection) String() string {
	switch b {
	case BatteryLow:
		return "low"
	case BatteryMedium:
		return "medium"
	case BatteryHigh:
		return "high"
	}
	return fmt.Sprintf("batteryProtection(%d)", byte(b))
}

// Battery is the supply state reported by the fridge.
type Battery struct {
	Percent   uint8
	DeciVolts uint16 // 126 means 12.6V
}

// ZoneStatus is one cooling compartment. Single-zone hardware never reports
// the right zone, so its Available stays false forever; that is expected
// and lets the entity layer show a permanently unavailable "Right" zone.
type ZoneStatus struct {
	Available bool
	Target    int8
	Current   int8
	RetDiff   int8 // hysteresis: degrees over target before restart
	TCHot     int8
	TCMid     int8
	TCCold    int8
	TCHalt    int8
}

// Snapshot is the reconciled device state. Fields a given status frame does
// not carry keep their previous values; see Reconciler.
type Snapshot struct {
	Locked        bool
	PoweredOn     bool
	Mode          RunMode
	BatSaver      BatteryProtection
	TempMax       int8
	TempMin       int8
	StartDelayMin uint8
	Fahrenheit    bool
	Battery       Battery
	Left          ZoneStatus
	Right         ZoneStatus
	Running       uint8 // dual-zone running-status byte, meaning not fully mapped
}

// Volts renders the supply voltage.
func (b Battery) Volts() string {
	return fmt.Sprintf("%d.%dV", b.DeciVolts/10, b.DeciVolts%10)
}

// applyStatus overwrites the snapshot fields present in the payload.
// Right-zone fields are only touched when the frame actually reports them.
func (s *Snapshot) applyStatus(p []byte) error {
	if len(p) < statusMinPayload {
		return fmt.Errorf("fridge: status payload too short: %d bytes", len(p))
	}

	s.Locked = p[0] != 0
	s.PoweredOn = p[1] != 0
	s.Mode = RunMode(p[2])
	s.BatSaver = BatteryProtection(p[3])
	s.TempMax = ToSignedByte(p[5])
	s.TempMin = ToSignedByte(p[6])
	s.StartDelayMin = p[8]
	s.Fahrenheit = p[9] != 0

	s.Left.Available = true
	s.Left.Target = ToSignedByte(p[4])
	s.Left.RetDiff = ToSignedByte(p[7])
	s.Left.TCHot = ToSignedByte(p[10])
	s.Left.TCMid = ToSignedByte(p[11])
	s.Left.TCCold = ToSignedByte(p[12])
	s.Left.TCHalt = ToSignedByte(p[13])
	s.Left.Current = ToSignedByte(p[14])

	s.Battery.Percent = p[15]
	s.Battery.DeciVolts = uint16(p[16])*10 + uint16(p[17])

	if len(p) >= statusDualPayload {
		s.Right.Available = true
		s.Right.Target = ToSignedByte(p[18])
		s.Right.RetDiff = ToSignedByte(p[21])
		s.Right.TCHot = ToSignedByte(p[22])
		s.Right.TCMid = ToSignedByte(p[23])
		s.Right.TCCold = ToSignedByte(p[24])
		s.Right.TCHalt = ToSignedByte(p[25])
		s.Right.Current = ToSignedByte(p[26])
		s.Running = p[27]
	}
	return nil
}
