package robot

import (
	"encoding/json"
	"fmt"
)

// State is a point-in-time snapshot of everything the robot reports.
//
// The JSON encoding is the payload of the retained full-state message
// on the robot link; delta messages carry one field at a time keyed by
// the same attribute names.
type State struct {
	// Status is the controller's own status register. Environmental
	// conditions (safety gate, home position) are layered on top by the
	// gateway when it publishes.
	Status StatusWord `json:"status"`

	TaskMessage  string `json:"task_message"`
	TaskProgress string `json:"task_progress"`
	Warning      string `json:"warning"`

	// SystemErrorMessage carries controller fault text, "OK" when
	// healthy.
	SystemErrorMessage string `json:"system_error_message"`

	AtHome     int `json:"at_home"`
	SafetyGate int `json:"safety_gate"`

	// Digital output command registers, 0 or 1.
	GripperCommand   int `json:"gripper_command"`
	LidCommand       int `json:"lid_command"`
	HeaterCommand    int `json:"heater_command"`
	HeaterAirCommand int `json:"heater_air_command"`

	// Digital input readbacks, 0 or 1.
	GripperOpen   int `json:"gripper_open"`
	GripperClosed int `json:"gripper_closed"`
	LidOpen       int `json:"lid_open"`
	LidClosed     int `json:"lid_closed"`
	HeaterHot     int `json:"heater_hot"`

	PinsMounted int `json:"pins_mounted"`
	PinsLost    int `json:"pins_lost"`

	ClosestPoint  int    `json:"closest_point"`
	LN2Level      int    `json:"ln2_level"`
	DumbbellState string `json:"dumbbell_state"`

	// CurrentPort is the port the robot is currently working on, or nil.
	CurrentPort *PortAddress `json:"current_port"`

	// SampleLocations maps a transfer location (cavity, picker, placer,
	// goniometer) to the port its sample came from. Locations without a
	// sample are absent or nil.
	SampleLocations map[string]*PortAddress `json:"sample_locations"`

	HolderTypes map[Position]HolderType  `json:"holder_types"`
	PortStates  map[Position][]PortState `json:"port_states"`

	// PortDistances holds the probe distance per port in hundredths of
	// millimetres, nil where the port has not been probed.
	PortDistances map[Position][]*float64 `json:"port_distances"`
	HeightErrors  map[Position]*float64   `json:"height_errors"`

	// Calibration timestamps as reported by the controller, free text,
	// empty when a calibration has never run.
	LastToolsetCalibration    string `json:"last_toolset_calibration"`
	LastLeftCalibration       string `json:"last_left_calibration"`
	LastMiddleCalibration     string `json:"last_middle_calibration"`
	LastRightCalibration      string `json:"last_right_calibration"`
	LastGoniometerCalibration string `json:"last_goniometer_calibration"`
}

// NewState returns a State with every attribute at its pre-connection
// default: all ports unknown, no samples in transit, dumbbell parked.
func NewState() *State {
	s := &State{
		SampleLocations: make(map[string]*PortAddress),
		HolderTypes:     make(map[Position]HolderType, 3),
		PortStates:      make(map[Position][]PortState, 3),
		PortDistances:   make(map[Position][]*float64, 3),
		HeightErrors:    make(map[Position]*float64, 3),
	}
	s.normalize()
	return s
}

// normalize fills in anything missing from a snapshot so publishers
// always see all three positions and a full set of ports.
func (s *State) normalize() {
	if s.SampleLocations == nil {
		s.SampleLocations = make(map[string]*PortAddress)
	}
	if s.HolderTypes == nil {
		s.HolderTypes = make(map[Position]HolderType, 3)
	}
	if s.PortStates == nil {
		s.PortStates = make(map[Position][]PortState, 3)
	}
	if s.PortDistances == nil {
		s.PortDistances = make(map[Position][]*float64, 3)
	}
	if s.HeightErrors == nil {
		s.HeightErrors = make(map[Position]*float64, 3)
	}
	for _, pos := range Positions() {
		if _, ok := s.HolderTypes[pos]; !ok {
			s.HolderTypes[pos] = HolderUnknown
		}
		if len(s.PortStates[pos]) == 0 {
			s.PortStates[pos] = make([]PortState, SamplesPerPosition)
		}
		if len(s.PortDistances[pos]) == 0 {
			s.PortDistances[pos] = make([]*float64, SamplesPerPosition)
		}
	}
	if s.DumbbellState == "" {
		s.DumbbellState = "in cradle"
	}
}

// Clone returns a deep copy of the state. The copy shares no mutable
// data with the original, so callers may hold it indefinitely.
func (s *State) Clone() *State {
	c := *s
	c.CurrentPort = clonePort(s.CurrentPort)
	c.SampleLocations = make(map[string]*PortAddress, len(s.SampleLocations))
	for k, v := range s.SampleLocations {
		c.SampleLocations[k] = clonePort(v)
	}
	c.HolderTypes = make(map[Position]HolderType, len(s.HolderTypes))
	for k, v := range s.HolderTypes {
		c.HolderTypes[k] = v
	}
	c.PortStates = make(map[Position][]PortState, len(s.PortStates))
	for k, v := range s.PortStates {
		c.PortStates[k] = append([]PortState(nil), v...)
	}
	c.PortDistances = make(map[Position][]*float64, len(s.PortDistances))
	for k, v := range s.PortDistances {
		ds := make([]*float64, len(v))
		for i, d := range v {
			ds[i] = cloneFloat(d)
		}
		c.PortDistances[k] = ds
	}
	c.HeightErrors = make(map[Position]*float64, len(s.HeightErrors))
	for k, v := range s.HeightErrors {
		c.HeightErrors[k] = cloneFloat(v)
	}
	return &c
}

func clonePort(p *PortAddress) *PortAddress {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	cf := *f
	return &cf
}

// applyAttribute applies a single delta to the state. The attribute
// names match the State JSON tags. Map-valued attributes merge per
// position so the controller can report one position at a time;
// sample_locations replaces the whole map because absence means empty.
func (s *State) applyAttribute(attr string, raw json.RawMessage) error {
	var err error
	switch attr {
	case "status":
		err = json.Unmarshal(raw, &s.Status)
	case "task_message":
		err = json.Unmarshal(raw, &s.TaskMessage)
	case "task_progress":
		err = json.Unmarshal(raw, &s.TaskProgress)
	case "warning":
		err = json.Unmarshal(raw, &s.Warning)
	case "system_error_message":
		err = json.Unmarshal(raw, &s.SystemErrorMessage)
	case "at_home":
		err = json.Unmarshal(raw, &s.AtHome)
	case "safety_gate":
		err = json.Unmarshal(raw, &s.SafetyGate)
	case "gripper_command":
		err = json.Unmarshal(raw, &s.GripperCommand)
	case "lid_command":
		err = json.Unmarshal(raw, &s.LidCommand)
	case "heater_command":
		err = json.Unmarshal(raw, &s.HeaterCommand)
	case "heater_air_command":
		err = json.Unmarshal(raw, &s.HeaterAirCommand)
	case "gripper_open":
		err = json.Unmarshal(raw, &s.GripperOpen)
	case "gripper_closed":
		err = json.Unmarshal(raw, &s.GripperClosed)
	case "lid_open":
		err = json.Unmarshal(raw, &s.LidOpen)
	case "lid_closed":
		err = json.Unmarshal(raw, &s.LidClosed)
	case "heater_hot":
		err = json.Unmarshal(raw, &s.HeaterHot)
	case "pins_mounted":
		err = json.Unmarshal(raw, &s.PinsMounted)
	case "pins_lost":
		err = json.Unmarshal(raw, &s.PinsLost)
	case "closest_point":
		err = json.Unmarshal(raw, &s.ClosestPoint)
	case "ln2_level":
		err = json.Unmarshal(raw, &s.LN2Level)
	case "dumbbell_state":
		err = json.Unmarshal(raw, &s.DumbbellState)
	case "current_port":
		err = json.Unmarshal(raw, &s.CurrentPort)
	case "sample_locations":
		var locations map[string]*PortAddress
		if err = json.Unmarshal(raw, &locations); err == nil {
			if locations == nil {
				locations = make(map[string]*PortAddress)
			}
			s.SampleLocations = locations
		}
	case "holder_types":
		var types map[Position]HolderType
		if err = json.Unmarshal(raw, &types); err == nil {
			for pos, t := range types {
				s.HolderTypes[pos] = t
			}
		}
	case "port_states":
		var states map[Position][]PortState
		if err = json.Unmarshal(raw, &states); err == nil {
			for pos, ps := range states {
				s.PortStates[pos] = ps
			}
		}
	case "port_distances":
		var distances map[Position][]*float64
		if err = json.Unmarshal(raw, &distances); err == nil {
			for pos, ds := range distances {
				s.PortDistances[pos] = ds
			}
		}
	case "height_errors":
		var errs map[Position]*float64
		if err = json.Unmarshal(raw, &errs); err == nil {
			for pos, he := range errs {
				s.HeightErrors[pos] = he
			}
		}
	case "last_toolset_calibration":
		err = json.Unmarshal(raw, &s.LastToolsetCalibration)
	case "last_left_calibration":
		err = json.Unmarshal(raw, &s.LastLeftCalibration)
	case "last_middle_calibration":
		err = json.Unmarshal(raw, &s.LastMiddleCalibration)
	case "last_right_calibration":
		err = json.Unmarshal(raw, &s.LastRightCalibration)
	case "last_goniometer_calibration":
		err = json.Unmarshal(raw, &s.LastGoniometerCalibration)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, attr)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrBadMessage, attr, err)
	}
	return nil
}
