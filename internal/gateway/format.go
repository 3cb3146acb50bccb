package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mxrobo/robodhs/internal/robot"
)

// The formatters in this file render robot state into the field part of
// each DCSS string. The publisher wraps the fields in the
// htos_set_string_completed envelope.

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SampleState derives where a sample currently is, in BluIce wording.
// A sample reported in more than one place at once is a "bad state".
func SampleState(s *robot.State) string {
	state := "no"
	occupied := 0
	for _, l := range []struct{ location, label string }{
		{robot.LocationCavity, "on tong"},
		{robot.LocationPicker, "on picker"},
		{robot.LocationPlacer, "on placer"},
		{robot.LocationGoniometer, "on gonio"},
	} {
		if s.SampleLocations[l.location] != nil {
			state = l.label
			occupied++
		}
	}
	if occupied > 1 {
		return "bad state"
	}
	return state
}

// LN2String renders the liquid nitrogen level: 0 means empty, 1 means
// filled, anything else a sensor fault.
func LN2String(level int) string {
	switch level {
	case 0:
		return "no"
	case 1:
		return "yes"
	default:
		return "wrong"
	}
}

// StatusFields renders the robot_status string fields. operationName is
// the running foreground operation, "idle" when the gateway is free.
func StatusFields(s *robot.State, operationName string) string {
	w := ComputeStatus(s)
	return fmt.Sprintf(
		"status: %d need_reset: %d need_cal: %d state: {%s} warning: {%s} "+
			"cal_msg: {%s} cal_step: {%s} mounted: {%s} pin_lost: %d pin_mounted: %d "+
			"manual_mode: %d need_mag_cal: %d need_cas_cal: %d need_clear: %d",
		uint32(w),
		b2i(w.Has(robot.NeedReset)),
		b2i(w.Has(robot.NeedCalAll)),
		operationName,
		s.Warning,
		s.TaskMessage,
		s.TaskProgress,
		MountedToken(s),
		s.PinsLost,
		s.PinsMounted,
		b2i(w.Has(robot.InManual)),
		b2i(w.Has(robot.NeedCalMagnet)),
		b2i(w.Has(robot.NeedCalCassette)),
		b2i(w.Has(robot.NeedClear)),
	)
}

// StateFields renders the robot_state string fields. Unpopulated
// positions in the original 18-field layout stay zero.
func StateFields(s *robot.State) string {
	currentPort := ""
	if s.CurrentPort != nil {
		currentPort = PortToken(s, s.CurrentPort)
	}
	return fmt.Sprintf(
		"{%s} {%s} P%d %s {%s} 0 0 0 %d 0 0 {%s} {%s} {%s} 0 0 0 0",
		SampleState(s),
		s.DumbbellState,
		s.ClosestPoint,
		LN2String(s.LN2Level),
		currentPort,
		b2i(s.SampleLocations[robot.LocationGoniometer] != nil),
		PortToken(s, s.SampleLocations[robot.LocationCavity]),
		PortToken(s, s.SampleLocations[robot.LocationPicker]),
		PortToken(s, s.SampleLocations[robot.LocationPlacer]),
	)
}

// CassetteFields renders the robot_cassette string fields: for each
// position the holder type code followed by 96 port state codes, with
// the goniometer-mounted port overlaid as "m".
func CassetteFields(s *robot.State) string {
	mounted := s.SampleLocations[robot.LocationGoniometer]
	blocks := make([]string, 0, len(robot.Positions()))
	for _, pos := range robot.Positions() {
		var b strings.Builder
		b.WriteString(s.HolderTypes[pos].Code())
		states := s.PortStates[pos]
		for i := 0; i < robot.SamplesPerPosition; i++ {
			b.WriteByte(' ')
			if mounted != nil && mounted.Position == pos && mounted.Index == i {
				b.WriteByte('m')
				continue
			}
			if i < len(states) {
				b.WriteString(states[i].Code())
			} else {
				b.WriteString(robot.PortUnknown.Code())
			}
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, " ")
}

// ForceFields renders one robot_force_<position> string: the height
// error followed by 96 probe distances, "uuuu" where a port has not
// been probed.
func ForceFields(s *robot.State, pos robot.Position) string {
	parts := make([]string, 0, robot.SamplesPerPosition+1)
	parts = append(parts, heightErrorField(s.HeightErrors[pos]))
	distances := s.PortDistances[pos]
	for i := 0; i < robot.SamplesPerPosition; i++ {
		var d *float64
		if i < len(distances) {
			d = distances[i]
		}
		if d == nil {
			parts = append(parts, "uuuu")
		} else {
			parts = append(parts, strconv.FormatFloat(*d, 'f', 1, 64))
		}
	}
	return strings.Join(parts, " ")
}

func heightErrorField(he *float64) string {
	if he == nil || *he == 0 {
		return "0"
	}
	return strconv.FormatFloat(*he, 'g', -1, 64)
}

// CalibrationFields renders the ts_robot_cal string fields: the five
// calibration timestamps (toolset, left, middle, right, goniometer),
// "{}" where a calibration has never run.
func CalibrationFields(s *robot.State) string {
	stamps := []string{
		s.LastToolsetCalibration,
		s.LastLeftCalibration,
		s.LastMiddleCalibration,
		s.LastRightCalibration,
		s.LastGoniometerCalibration,
	}
	parts := make([]string, len(stamps))
	for i, ts := range stamps {
		parts[i] = "{" + ts + "}"
	}
	return strings.Join(parts, " ")
}

// OutputFields renders the robot_output string: the 16 digital output
// command registers.
func OutputFields(s *robot.State) string {
	outputs := [16]int{
		robot.OutputGripper:   s.GripperCommand,
		robot.OutputLid:       s.LidCommand,
		robot.OutputHeaterAir: s.HeaterAirCommand,
		robot.OutputHeater:    s.HeaterCommand,
	}
	return joinInts(outputs[:])
}

// InputFields renders the robot_input string: the 16 digital input
// readbacks.
func InputFields(s *robot.State) string {
	inputs := [16]int{
		8:  s.GripperOpen,
		9:  s.GripperClosed,
		11: s.LidClosed,
		12: s.LidOpen,
		13: s.HeaterHot,
	}
	return joinInts(inputs[:])
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// ParseTaskMessage splits a controller task message of the form
// "<LEVEL> <text>" into a DCSS log level and the remaining text. A
// message without a level prefix logs as a note; unrecognised prefixes
// log as errors.
func ParseTaskMessage(value string) (level, message string) {
	prefix, rest, found := strings.Cut(value, " ")
	if !found {
		return "note", value
	}
	switch prefix {
	case "DEBUG", "INFO":
		level = "note"
	case "WARNING":
		level = "warning"
	default:
		level = "error"
	}
	return level, rest
}
