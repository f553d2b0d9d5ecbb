package fridge

import "fmt"

// Kind selects a command family. The numeric value is the wire opcode.
type Kind byte

const (
	Bind     Kind = Kind(cmdBind)
	Query    Kind = Kind(cmdQuery)
	Set      Kind = Kind(cmdSet)
	Reset    Kind = Kind(cmdReset)
	SetLeft  Kind = Kind(cmdSetLeft)
	SetRight Kind = Kind(cmdSetRight)
)

func (k Kind) String() string {
	switch k {
	case Bind:
		return "bind"
	case Query:
		return "query"
	case Set:
		return "set"
	case Reset:
		return "reset"
	case SetLeft:
		return "setLeft"
	case SetRight:
		return "setRight"
	}
	return fmt.Sprintf("kind(%#x)", byte(k))
}

// QueryPacket requests a status notification, and is static, so it needs no
// associated builder.
var QueryPacket = []byte{0xfe, 0xfe, 0x03, 0x01, 0x02, 0x00}

// BindPacket is sent once per connection before the first write; the fridge
// flashes its display and accepts the phone/host as bound.
var BindPacket = []byte{0xfe, 0xfe, 0x03, 0x00, 0x01, 0xff}

// ResetPacket restores factory settings.
var ResetPacket = []byte{0xfe, 0xfe, 0x03, 0x04, 0x02, 0x03}

// Settings is the full writable settings image carried by a Set command.
// The device has no per-field writes: a Set always sends every value, so
// callers start from the last reported Snapshot (see SettingsFromSnapshot)
// and change what they need.
type Settings struct {
	Locked    bool // Keypad lock
	PoweredOn bool // Soft power state
	EcoMode   bool // false=Max, true=Eco
	BatSaver  BatteryProtection

	LeftTarget    int // Desired temperature (thermostat)
	TempMax       int // Upper settable bound reported by the device
	TempMin       int // Lower settable bound reported by the device
	LeftRetDiff   int // Hysteresis: degrees over target before restart
	StartDelayMin int // Compressor soft-start delay in minutes
	Fahrenheit    bool

	// Temperature compensation bands
	LeftTCHot  int
	LeftTCMid  int
	LeftTCCold int
	LeftTCHalt int

	// Dual-zone units append a second block; single-zone units must not
	// send it or the fridge ignores the whole command.
	DualZone     bool
	RightTarget  int
	RightRetDiff int
	RightTCHot   int
	RightTCMid   int
	RightTCCold  int
	RightTCHalt  int
}

// Validate checks the target temperatures against the device's own reported
// bounds. Zero bounds mean we have not seen a status frame yet and nothing
// is checked.
func (s Settings) Validate() error {
	if s.TempMin >= s.TempMax {
		return nil
	}
	if s.LeftTarget > s.TempMax || s.LeftTarget < s.TempMin {
		return fmt.Errorf("fridge: left target %d outside device range [%d,%d]", s.LeftTarget, s.TempMin, s.TempMax)
	}
	if s.DualZone && (s.RightTarget > s.TempMax || s.RightTarget < s.TempMin) {
		return fmt.Errorf("fridge: right target %d outside device range [%d,%d]", s.RightTarget, s.TempMin, s.TempMax)
	}
	return nil
}

// SettingsFromSnapshot seeds a settings image from the last reported state,
// the starting point for every read-modify-write.
func SettingsFromSnapshot(snap Snapshot) Settings {
	s := Settings{
		Locked:        snap.Locked,
		PoweredOn:     snap.PoweredOn,
		EcoMode:       snap.Mode == ModeEco,
		BatSaver:      snap.BatSaver,
		LeftTarget:    int(snap.Left.Target),
		TempMax:       int(snap.TempMax),
		TempMin:       int(snap.TempMin),
		LeftRetDiff:   int(snap.Left.RetDiff),
		StartDelayMin: int(snap.StartDelayMin),
		Fahrenheit:    snap.Fahrenheit,
		LeftTCHot:     int(snap.Left.TCHot),
		LeftTCMid:     int(snap.Left.TCMid),
		LeftTCCold:    int(snap.Left.TCCold),
		LeftTCHalt:    int(snap.Left.TCHalt),
	}
	if snap.Right.Available {
		s.DualZone = true
		s.RightTarget = int(snap.Right.Target)
		s.RightRetDiff = int(snap.Right.RetDiff)
		s.RightTCHot = int(snap.Right.TCHot)
		s.RightTCMid = int(snap.Right.TCMid)
		s.RightTCCold = int(snap.Right.TCCold)
		s.RightTCHalt = int(snap.Right.TCHalt)
	}
	return s
}

// Command is one logical outgoing command, immutable once constructed.
type Command struct {
	Kind     Kind
	Settings Settings // Set only
	Temp     int      // SetLeft / SetRight only
}

func NewBindCommand() Command  { return Command{Kind: Bind} }
func NewQueryCommand() Command { return Command{Kind: Query} }
func NewResetCommand() Command { return Command{Kind: Reset} }

func NewSetCommand(s Settings) Command {
	return Command{Kind: Set, Settings: s}
}

// NewSetLeftCommand sets the left (or only) zone thermostat directly.
func NewSetLeftCommand(temp int) Command {
	return Command{Kind: SetLeft, Temp: temp}
}

// NewSetRightCommand sets the right zone thermostat on dual-zone units.
func NewSetRightCommand(temp int) Command {
	return Command{Kind: SetRight, Temp: temp}
}

// Each command family has its own framing rule: the simple family is a
// fixed byte string with no variable payload, the set family carries a
// built payload behind a length byte. Data-driven dispatch keeps the
// per-kind quirks in one table.
type framing struct {
	fixed   []byte
	payload func(Command) ([]byte, error)
}

var framings = map[Kind]framing{
	Bind:     {fixed: BindPacket},
	Query:    {fixed: QueryPacket},
	Reset:    {fixed: ResetPacket},
	Set:      {payload: setPayload},
	SetLeft:  {payload: zoneTempPayload},
	SetRight: {payload: zoneTempPayload},
}

// Encode builds the outgoing wire frame for c.
func Encode(c Command) ([]byte, error) {
	f, ok := framings[c.Kind]
	if !ok {
		return nil, fmt.Errorf("fridge: unknown command kind %#x", byte(c.Kind))
	}
	if f.fixed != nil {
		out := make([]byte, len(f.fixed))
		copy(out, f.fixed)
		return out, nil
	}

	data, err := f.payload(c)
	if err != nil {
		return nil, err
	}
	// opcode + data + 2 checksum bytes, counted by the length byte
	frame := make([]byte, 0, frameOverhead+1+len(data)+2)
	frame = append(frame, 0xfe, 0xfe, byte(len(data)+3), byte(c.Kind))
	frame = append(frame, data...)
	sum := checksum(frame)
	frame = append(frame, byte(sum>>8), byte(sum))
	return frame, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func setPayload(c Command) ([]byte, error) {
	s := c.Settings
	if err := s.Validate(); err != nil {
		return nil, err
	}

	signedFields := []struct {
		name string
		v    int
	}{
		{"leftTarget", s.LeftTarget},
		{"tempMax", s.TempMax},
		{"tempMin", s.TempMin},
		{"leftRetDiff", s.LeftRetDiff},
	}
	data := []byte{
		boolByte(s.Locked),
		boolByte(s.PoweredOn),
		boolByte(s.EcoMode),
		byte(s.BatSaver),
	}
	for _, f := range signedFields {
		b, err := signedByte(f.name, f.v)
		if err != nil {
			return nil, err
		}
		data = append(data, b)
	}
	delay, err := signedByte("startDelayMin", s.StartDelayMin)
	if err != nil {
		return nil, err
	}
	data = append(data, delay, boolByte(s.Fahrenheit))
	for _, f := range []struct {
		name string
		v    int
	}{
		{"leftTCHot", s.LeftTCHot},
		{"leftTCMid", s.LeftTCMid},
		{"leftTCCold", s.LeftTCCold},
		{"leftTCHalt", s.LeftTCHalt},
	} {
		b, err := signedByte(f.name, f.v)
		if err != nil {
			return nil, err
		}
		data = append(data, b)
	}

	if !s.DualZone {
		return data, nil
	}

	// Right zone block, padding bytes as captured from the app
	right := []struct {
		name string
		v    int
	}{
		{"rightTarget", s.RightTarget},
		{"pad", 0},
		{"pad", 0},
		{"rightRetDiff", s.RightRetDiff},
		{"rightTCHot", s.RightTCHot},
		{"rightTCMid", s.RightTCMid},
		{"rightTCCold", s.RightTCCold},
		{"rightTCHalt", s.RightTCHalt},
		{"pad", 0},
		{"pad", 0},
		{"pad", 0},
	}
	for _, f := range right {
		b, err := signedByte(f.name, f.v)
		if err != nil {
			return nil, err
		}
		data = append(data, b)
	}
	return data, nil
}

func zoneTempPayload(c Command) ([]byte, error) {
	b, err := signedByte("temp", c.Temp)
	if err != nil {
		return nil, err
	}
	return []byte{b}, nil
}
