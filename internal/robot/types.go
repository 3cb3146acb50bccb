package robot

// SamplesPerPosition is the number of sample ports in each cassette
// position.
const SamplesPerPosition = 96

// Position identifies one of the three cassette positions in the dewar,
// left to right as seen from the robot.
type Position string

const (
	PositionLeft   Position = "left"
	PositionMiddle Position = "middle"
	PositionRight  Position = "right"
)

// Positions returns the three cassette positions in publication order.
func Positions() []Position {
	return []Position{PositionLeft, PositionMiddle, PositionRight}
}

// Letter returns the single-character position code used in port tokens
// ("l", "m" or "r").
func (p Position) Letter() string {
	if p == "" {
		return ""
	}
	return string(p[0])
}

// ParsePositionLetter resolves a single-character position code to a
// Position. The second return value is false for unrecognised codes.
func ParsePositionLetter(letter string) (Position, bool) {
	switch letter {
	case "l":
		return PositionLeft, true
	case "m":
		return PositionMiddle, true
	case "r":
		return PositionRight, true
	default:
		return "", false
	}
}

// HolderType identifies the kind of sample holder detected at a
// cassette position. The values are the single-character codes used on
// the wire.
type HolderType string

const (
	HolderUnknown     HolderType = "u"
	HolderCassette    HolderType = "1"
	HolderCalibration HolderType = "2"
	HolderSuperPuck   HolderType = "3"
	HolderAbsent      HolderType = "X"
)

// Code returns the wire code for the holder type. Unrecognised values
// report as unknown.
func (h HolderType) Code() string {
	switch h {
	case HolderCassette, HolderCalibration, HolderSuperPuck, HolderAbsent:
		return string(h)
	default:
		return string(HolderUnknown)
	}
}

// IsCassette reports whether ports are addressed with the 8-row
// cassette layout (columns A-L).
func (h HolderType) IsCassette() bool {
	return h == HolderCassette || h == HolderCalibration
}

// IsSuperPuck reports whether ports are addressed with the 16-row puck
// adaptor layout (pucks A-F).
func (h HolderType) IsSuperPuck() bool {
	return h == HolderSuperPuck
}

// PortState is the occupancy state of a single cassette port.
type PortState int

const (
	PortUnknown PortState = iota
	PortEmpty
	PortFull
	PortError
)

// Code returns the single-character code used in the cassette status
// string.
func (s PortState) Code() string {
	switch s {
	case PortEmpty:
		return "0"
	case PortFull:
		return "1"
	case PortError:
		return "b"
	default:
		return "u"
	}
}

// PortAddress identifies a single port by cassette position and
// zero-based port index (0-95).
type PortAddress struct {
	Position Position `json:"position"`
	Index    int      `json:"index"`
}

// Sample transfer locations tracked by the robot. Keys into
// State.SampleLocations.
const (
	LocationCavity     = "cavity"
	LocationPicker     = "picker"
	LocationPlacer     = "placer"
	LocationGoniometer = "goniometer"
)

// Output identifies a switchable digital output on the robot
// controller.
type Output int

// Outputs toggled by the hw_output_switch command. The values are the
// controller's output channel numbers.
const (
	OutputGripper   Output = 1
	OutputLid       Output = 3
	OutputHeaterAir Output = 13
	OutputHeater    Output = 14
)

// StatusWord is the 32-bit robot status register. Bits 0-6 flag
// required attention, bits 7-27 carry the reason, and bits 28-31
// indicate in-progress activity.
type StatusWord uint32

// Attention flags (bits 0-6).
const (
	NeedClear       StatusWord = 0x1
	NeedReset       StatusWord = 0x2
	NeedCalMagnet   StatusWord = 0x4
	NeedCalCassette StatusWord = 0x8
	NeedCalGonio    StatusWord = 0x10
	NeedCalBasic    StatusWord = 0x20
	NeedUserAction  StatusWord = 0x40

	NeedAll    StatusWord = 0x7f
	NeedCalAll StatusWord = 0x3c
)

// Reason flags (bits 7-27).
const (
	ReasonPortJam      StatusWord = 0x80
	ReasonEstop        StatusWord = 0x100
	ReasonSafeguard    StatusWord = 0x200
	ReasonNotHome      StatusWord = 0x400
	ReasonCmdError     StatusWord = 0x800
	ReasonLidJam       StatusWord = 0x1000
	ReasonGripperJam   StatusWord = 0x2000
	ReasonLostMagnet   StatusWord = 0x4000
	ReasonCollision    StatusWord = 0x8000
	ReasonInit         StatusWord = 0x10000
	ReasonTolerance    StatusWord = 0x20000
	ReasonLN2Level     StatusWord = 0x40000
	ReasonHeaterFail   StatusWord = 0x80000
	ReasonCassette     StatusWord = 0x100000
	ReasonPinLost      StatusWord = 0x200000
	ReasonWrongState   StatusWord = 0x400000
	ReasonBadArgument  StatusWord = 0x800000
	ReasonSampleInPort StatusWord = 0x1000000
	ReasonAbort        StatusWord = 0x2000000
	ReasonUnreachable  StatusWord = 0x4000000
	ReasonExternal     StatusWord = 0x8000000

	ReasonAll StatusWord = 0x0fffff80
)

// Activity flags (bits 28-31).
const (
	InReset       StatusWord = 0x10000000
	InCalibration StatusWord = 0x20000000
	InTool        StatusWord = 0x40000000
	InManual      StatusWord = 0x80000000

	InAll StatusWord = 0xf0000000
)

// Has reports whether any of the given bits are set.
func (w StatusWord) Has(bits StatusWord) bool {
	return w&bits != 0
}
