package gateway

import (
	"fmt"

	"github.com/mxrobo/robodhs/internal/robot"
)

// DCSS string registry names owned by this gateway.
const (
	stringRobotStatus   = "robot_status"
	stringRobotState    = "robot_state"
	stringRobotCassette = "robot_cassette"
	stringRobotForce    = "robot_force_%s"
	stringCalibration   = "ts_robot_cal"
	stringRobotOutput   = "robot_output"
	stringRobotInput    = "robot_input"
)

// PublishAll sends the full DCSS string set in the login order: status,
// state, cassette, the three force strings, then the calibration
// timestamps.
func (g *Gateway) PublishAll() {
	s := g.driver.Snapshot()
	g.publishString(stringRobotStatus, StatusFields(s, g.CurrentOperation()))
	g.publishString(stringRobotState, StateFields(s))
	g.publishString(stringRobotCassette, CassetteFields(s))
	for _, pos := range robot.Positions() {
		g.publishString(fmt.Sprintf(stringRobotForce, pos), ForceFields(s, pos))
	}
	g.publishString(stringCalibration, CalibrationFields(s))
	g.notifyObserver()
}

// PublishStatus sends the robot_status string and records the word in
// the event sink.
func (g *Gateway) PublishStatus() {
	s := g.driver.Snapshot()
	state := g.CurrentOperation()
	g.publishString(stringRobotStatus, StatusFields(s, state))
	if g.sink != nil {
		g.sink.RecordStatus(uint32(ComputeStatus(s)), state)
	}
	g.notifyObserver()
}

// PublishState sends the robot_state string.
func (g *Gateway) PublishState() {
	g.publishString(stringRobotState, StateFields(g.driver.Snapshot()))
	g.notifyObserver()
}

// PublishCassettes sends the robot_cassette string.
func (g *Gateway) PublishCassettes() {
	g.publishString(stringRobotCassette, CassetteFields(g.driver.Snapshot()))
	g.notifyObserver()
}

// PublishForces sends the robot_force string for one position.
func (g *Gateway) PublishForces(pos robot.Position) {
	g.publishString(fmt.Sprintf(stringRobotForce, pos), ForceFields(g.driver.Snapshot(), pos))
	g.notifyObserver()
}

// PublishCalibrations sends the ts_robot_cal string.
func (g *Gateway) PublishCalibrations() {
	g.publishString(stringCalibration, CalibrationFields(g.driver.Snapshot()))
	g.notifyObserver()
}

// PublishOutputs sends the robot_output string.
func (g *Gateway) PublishOutputs() {
	g.publishString(stringRobotOutput, OutputFields(g.driver.Snapshot()))
	g.notifyObserver()
}

// PublishInputs sends the robot_input string.
func (g *Gateway) PublishInputs() {
	g.publishString(stringRobotInput, InputFields(g.driver.Snapshot()))
	g.notifyObserver()
}

// publishString wraps fields in the set-string envelope and sends them.
// Send failures are logged, never raised: the reconnecting DCSS link
// republishes everything at the next login.
func (g *Gateway) publishString(name, fields string) {
	msg := fmt.Sprintf("htos_set_string_completed %s normal %s", name, fields)
	if err := g.sender.Send(msg); err != nil {
		g.logWarn("string publish failed", "string", name, "error", err)
		return
	}
	g.published.Add(1)
}

// SendLog forwards a log line to the DCSS operation console.
func (g *Gateway) SendLog(level, message string) {
	if err := g.sender.Send(fmt.Sprintf("htos_log %s %s", level, message)); err != nil {
		g.logWarn("log forward failed", "level", level, "error", err)
		return
	}
	g.logsSent.Add(1)
}

// OnRobotChange is the robot client's change callback. It fans each
// changed attribute out to the DCSS strings that render it.
func (g *Gateway) OnRobotChange(attr string) {
	switch attr {
	case robot.AttrSnapshot:
		g.PublishAll()

	case "status", "at_home", "safety_gate", "pins_mounted", "pins_lost",
		"task_progress", "warning":
		g.PublishStatus()

	case "task_message":
		g.PublishStatus()
		g.forwardTaskMessage()

	case "system_error_message":
		g.forwardSystemError()

	case "gripper_command", "lid_command", "heater_command", "heater_air_command":
		g.PublishOutputs()

	case "gripper_open", "gripper_closed", "lid_open", "lid_closed", "heater_hot":
		g.PublishInputs()

	case "closest_point", "ln2_level", "dumbbell_state", "current_port":
		g.PublishState()

	case "port_states", "holder_types":
		g.PublishCassettes()

	case "sample_locations":
		g.PublishState()
		g.PublishCassettes()

	case "port_distances", "height_errors":
		for _, pos := range robot.Positions() {
			g.PublishForces(pos)
		}

	case "last_toolset_calibration", "last_left_calibration",
		"last_middle_calibration", "last_right_calibration",
		"last_goniometer_calibration":
		g.PublishCalibrations()

	default:
		g.logDebug("no fan-out for attribute", "attr", attr)
	}
}

// forwardTaskMessage relays the controller's task message to the DCSS
// log with its level prefix decoded.
func (g *Gateway) forwardTaskMessage() {
	s := g.driver.Snapshot()
	if s.TaskMessage == "" {
		return
	}
	level, message := ParseTaskMessage(s.TaskMessage)
	g.SendLog(level, message)
}

// forwardSystemError relays controller fault text to the DCSS log. The
// controller reports "OK" when the fault clears; that is not worth a
// log line.
func (g *Gateway) forwardSystemError() {
	s := g.driver.Snapshot()
	if s.SystemErrorMessage == "OK" {
		return
	}
	g.SendLog("error", s.SystemErrorMessage)
}
