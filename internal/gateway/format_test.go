package gateway

import (
	"strconv"
	"strings"
	"testing"

	"github.com/mxrobo/robodhs/internal/robot"
)

func TestSampleState(t *testing.T) {
	addr := &robot.PortAddress{Position: robot.PositionLeft, Index: 0}
	tests := []struct {
		name      string
		locations map[string]*robot.PortAddress
		want      string
	}{
		{"nothing in transit", nil, "no"},
		{"on tong", map[string]*robot.PortAddress{robot.LocationCavity: addr}, "on tong"},
		{"on picker", map[string]*robot.PortAddress{robot.LocationPicker: addr}, "on picker"},
		{"on placer", map[string]*robot.PortAddress{robot.LocationPlacer: addr}, "on placer"},
		{"on gonio", map[string]*robot.PortAddress{robot.LocationGoniometer: addr}, "on gonio"},
		{
			"tong and goniometer is a bad state",
			map[string]*robot.PortAddress{
				robot.LocationCavity:     addr,
				robot.LocationGoniometer: addr,
			},
			"bad state",
		},
		{
			"picker and placer is a bad state",
			map[string]*robot.PortAddress{
				robot.LocationPicker: addr,
				robot.LocationPlacer: addr,
			},
			"bad state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := robot.NewState()
			for k, v := range tt.locations {
				s.SampleLocations[k] = v
			}
			if got := SampleState(s); got != tt.want {
				t.Errorf("SampleState() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLN2String(t *testing.T) {
	tests := []struct {
		level int
		want  string
	}{
		{0, "no"},
		{1, "yes"},
		{2, "wrong"},
		{-1, "wrong"},
	}
	for _, tt := range tests {
		if got := LN2String(tt.level); got != tt.want {
			t.Errorf("LN2String(%d) = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestStatusFields(t *testing.T) {
	s := robot.NewState()
	s.Status = robot.NeedClear | robot.ReasonCollision | robot.NeedCalCassette
	s.AtHome = 1
	s.TaskMessage = "all good"
	s.TaskProgress = "1 of 10"
	s.HolderTypes[robot.PositionLeft] = robot.HolderCassette
	s.SampleLocations[robot.LocationGoniometer] = &robot.PortAddress{
		Position: robot.PositionLeft, Index: 0,
	}
	s.PinsLost = 123
	s.PinsMounted = 456

	want := "status: 32777 " +
		"need_reset: 0 " +
		"need_cal: 1 " +
		"state: {idle} " +
		"warning: {} " +
		"cal_msg: {all good} " +
		"cal_step: {1 of 10} " +
		"mounted: {l 1 A} " +
		"pin_lost: 123 " +
		"pin_mounted: 456 " +
		"manual_mode: 0 " +
		"need_mag_cal: 0 " +
		"need_cas_cal: 1 " +
		"need_clear: 1"
	if got := StatusFields(s, idleState); got != want {
		t.Errorf("StatusFields() =\n%q\nwant\n%q", got, want)
	}
}

func TestStatusFieldsDerivedBits(t *testing.T) {
	s := robot.NewState()
	s.Status = robot.NeedReset | robot.InManual | robot.NeedCalMagnet
	s.AtHome = 0
	s.SafetyGate = 1
	s.Warning = "empty port in mounting"

	got := StatusFields(s, "mount_crystal")
	wantWord := s.Status | robot.ReasonSafeguard | robot.ReasonNotHome
	wantPrefix := "status: " + strconv.FormatUint(uint64(wantWord), 10) + " "
	if !strings.HasPrefix(got, wantPrefix) {
		t.Errorf("StatusFields() = %q, want prefix %q", got, wantPrefix)
	}
	for _, part := range []string{
		"need_reset: 1",
		"state: {mount_crystal}",
		"warning: {empty port in mounting}",
		"manual_mode: 1",
		"need_mag_cal: 1",
		"need_cas_cal: 0",
		"need_clear: 0",
	} {
		if !strings.Contains(got, part) {
			t.Errorf("StatusFields() missing %q in %q", part, got)
		}
	}
}

func TestStateFields(t *testing.T) {
	s := robot.NewState()
	s.ClosestPoint = 18
	s.LN2Level = 0
	s.HolderTypes[robot.PositionLeft] = robot.HolderCassette
	s.SampleLocations[robot.LocationCavity] = &robot.PortAddress{
		Position: robot.PositionLeft, Index: 0,
	}

	want := "{on tong} {in cradle} P18 no {} 0 0 0 0 0 0 " +
		"{l 1 A} {invalid} {invalid} 0 0 0 0"
	if got := StateFields(s); got != want {
		t.Errorf("StateFields() =\n%q\nwant\n%q", got, want)
	}
}

func TestStateFieldsMounted(t *testing.T) {
	s := robot.NewState()
	s.ClosestPoint = 3
	s.LN2Level = 1
	s.HolderTypes[robot.PositionMiddle] = robot.HolderSuperPuck
	s.SampleLocations[robot.LocationGoniometer] = &robot.PortAddress{
		Position: robot.PositionMiddle, Index: 16,
	}
	s.CurrentPort = &robot.PortAddress{Position: robot.PositionMiddle, Index: 16}

	want := "{on gonio} {in cradle} P3 yes {m 1 B} 0 0 0 1 0 0 " +
		"{invalid} {invalid} {invalid} 0 0 0 0"
	if got := StateFields(s); got != want {
		t.Errorf("StateFields() =\n%q\nwant\n%q", got, want)
	}
}

func TestCassetteFields(t *testing.T) {
	s := robot.NewState()
	s.SampleLocations[robot.LocationGoniometer] = &robot.PortAddress{
		Position: robot.PositionLeft, Index: 0,
	}
	s.HolderTypes[robot.PositionLeft] = robot.HolderCassette
	s.HolderTypes[robot.PositionMiddle] = robot.HolderSuperPuck
	s.HolderTypes[robot.PositionRight] = robot.HolderUnknown
	for i := 0; i < robot.SamplesPerPosition; i++ {
		s.PortStates[robot.PositionLeft][i] = robot.PortFull
		s.PortStates[robot.PositionMiddle][i] = robot.PortEmpty
		s.PortStates[robot.PositionRight][i] = robot.PortUnknown
	}

	left := "1 m" + strings.Repeat(" 1", 95)
	middle := "3" + strings.Repeat(" 0", 96)
	right := "u" + strings.Repeat(" u", 96)
	want := left + " " + middle + " " + right
	if got := CassetteFields(s); got != want {
		t.Errorf("CassetteFields() =\n%q\nwant\n%q", got, want)
	}
}

func TestForceFields(t *testing.T) {
	s := robot.NewState()
	got := ForceFields(s, robot.PositionLeft)
	want := "0" + strings.Repeat(" uuuu", 96)
	if got != want {
		t.Errorf("ForceFields() with no probes =\n%q\nwant\n%q", got, want)
	}

	he := 1.5
	d0 := 3.0
	d1 := 2.4
	s.HeightErrors[robot.PositionLeft] = &he
	s.PortDistances[robot.PositionLeft][0] = &d0
	s.PortDistances[robot.PositionLeft][1] = &d1

	got = ForceFields(s, robot.PositionLeft)
	want = "1.5 3.0 2.4" + strings.Repeat(" uuuu", 94)
	if got != want {
		t.Errorf("ForceFields() =\n%q\nwant\n%q", got, want)
	}
}

func TestCalibrationFields(t *testing.T) {
	s := robot.NewState()
	s.LastToolsetCalibration = "2016/02/08 11:39:12"

	want := "{2016/02/08 11:39:12} {} {} {} {}"
	if got := CalibrationFields(s); got != want {
		t.Errorf("CalibrationFields() = %q, want %q", got, want)
	}
}

func TestOutputFields(t *testing.T) {
	s := robot.NewState()
	s.GripperCommand = 1
	s.LidCommand = 1
	s.HeaterCommand = 1
	s.HeaterAirCommand = 1

	want := "0 1 0 1 0 0 0 0 0 0 0 0 0 1 1 0"
	if got := OutputFields(s); got != want {
		t.Errorf("OutputFields() = %q, want %q", got, want)
	}
}

func TestInputFields(t *testing.T) {
	s := robot.NewState()
	s.GripperOpen = 1
	s.GripperClosed = 1
	s.LidClosed = 1
	s.LidOpen = 1
	s.HeaterHot = 1

	want := "0 0 0 0 0 0 0 0 1 1 0 1 1 1 0 0"
	if got := InputFields(s); got != want {
		t.Errorf("InputFields() = %q, want %q", got, want)
	}
}

func TestParseTaskMessage(t *testing.T) {
	tests := []struct {
		value       string
		wantLevel   string
		wantMessage string
	}{
		{"DEBUG probing port", "note", "probing port"},
		{"INFO mount done", "note", "mount done"},
		{"WARNING gripper slow", "warning", "gripper slow"},
		{"ERROR port jam", "error", "port jam"},
		{"FATAL something", "error", "something"},
		{"no-level-prefix", "note", "no-level-prefix"},
	}
	for _, tt := range tests {
		level, message := ParseTaskMessage(tt.value)
		if level != tt.wantLevel || message != tt.wantMessage {
			t.Errorf("ParseTaskMessage(%q) = (%q, %q), want (%q, %q)",
				tt.value, level, message, tt.wantLevel, tt.wantMessage)
		}
	}
}
