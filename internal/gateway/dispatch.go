package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mxrobo/robodhs/internal/robot"
)

// handlerFunc processes one dispatched operation. Every handler must
// finish op on every path, either synchronously or through a driver
// callback.
type handlerFunc func(op *Operation, args []string)

// handler pairs a handlerFunc with its scheduling class. Foreground
// handlers take the busy slot before running; anything that reaches the
// driver is foreground.
type handler struct {
	fn         handlerFunc
	foreground bool
}

func (g *Gateway) buildHandlers() map[string]handler {
	return map[string]handler{
		"robot_config":               {g.handleRobotConfig, true},
		"robot_calibrate":            {g.handleCalibrate, true},
		"prepare_mount_crystal":      {g.handlePrepare, true},
		"prepare_dismount_crystal":   {g.handlePrepare, true},
		"prepare_mount_next_crystal": {g.handlePrepare, true},
		"mount_crystal":              {g.handleMount, true},
		"dismount_crystal":           {g.handleDismount, true},
		"mount_next_crystal":         {g.handleMountNext, true},
		"robot_standby":              {g.handleStandby, false},
	}
}

// HandleOperation dispatches a DCSS start-operation message. Unknown
// operation names are logged and ignored; the protocol tolerates
// operations registered for other hosts.
func (g *Gateway) HandleOperation(name, handle string, args []string) {
	h, ok := g.handlers[name]
	if !ok {
		g.logInfo("operation not handled", "operation", name, "handle", handle)
		return
	}

	g.started.Add(1)
	op := g.newOperation(name, handle)
	g.logInfo("operation started", "operation", name, "handle", handle, "args", strings.Join(args, " "))

	if h.foreground {
		if holder, ok := g.acquire(op); !ok {
			g.rejected.Add(1)
			g.fail(op, "busy: "+holder)
			return
		}
	}
	h.fn(op, args)
}

// operationCallback adapts driver progress events to operation
// completion. Only the end stage finishes the operation; update stages
// are logged and left to handlers that publish explicit updates.
func (g *Gateway) operationCallback(op *Operation) robot.Callback {
	return func(stage robot.Stage, message string, err error) {
		if stage != robot.StageEnd {
			g.logDebug("operation progress",
				"operation", op.Name(), "stage", string(stage), "message", message)
			return
		}
		if err != nil {
			g.fail(op, err.Error())
			return
		}
		if message == "" {
			message = "OK"
		}
		g.complete(op, message)
	}
}

// delegate issues one driver action, failing the operation immediately
// when the action cannot be sent.
func (g *Gateway) delegate(op *Operation, action func(cb robot.Callback) error) {
	if err := action(g.operationCallback(op)); err != nil {
		g.fail(op, err.Error())
	}
}

// handleRobotConfig routes the robot_config sub-commands. Unknown
// tasks are logged and finish without a wire reply; the protocol
// tolerates config tasks this host does not implement.
func (g *Gateway) handleRobotConfig(op *Operation, args []string) {
	if len(args) == 0 {
		g.fail(op, "missing config task")
		return
	}
	task, rest := args[0], args[1:]

	switch task {
	case "clear":
		g.delegate(op, g.driver.Clear)
	case "clear_all":
		g.delegate(op, g.driver.ClearAll)
	case "hw_output_switch":
		g.configOutputSwitch(op, rest)
	case "reset_cassette":
		g.delegate(op, func(cb robot.Callback) error {
			return g.driver.ResetPorts(fullSelection(), cb)
		})
	case "set_index_state":
		g.configSetIndexState(op, rest)
	case "set_port_state":
		g.configSetPortState(op, rest)
	case "set_mounted":
		g.configSetMounted(op, rest)
	case "reset_mounted_counter":
		g.delegate(op, g.driver.ResetMountCounters)
	case "probe":
		g.configProbe(op, rest)
	default:
		g.logInfo("config task not handled", "task", task, "handle", op.Handle())
		op.Discard("unknown config task: " + task)
	}
}

// configOutputSwitch toggles a digital output by inverting its current
// command register.
func (g *Gateway) configOutputSwitch(op *Operation, args []string) {
	if len(args) == 0 {
		g.fail(op, "missing output id")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		g.fail(op, "invalid output id: "+args[0])
		return
	}

	s := g.driver.Snapshot()
	var current int
	output := robot.Output(id)
	switch output {
	case robot.OutputGripper:
		current = s.GripperCommand
	case robot.OutputLid:
		current = s.LidCommand
	case robot.OutputHeaterAir:
		current = s.HeaterAirCommand
	case robot.OutputHeater:
		current = s.HeaterCommand
	default:
		g.fail(op, "Not implemented")
		return
	}

	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.SetOutput(output, 1-current, cb)
	})
}

// configSetIndexState resets a flattened port index range.
func (g *Gateway) configSetIndexState(op *Operation, args []string) {
	if len(args) < 3 {
		g.fail(op, "expected start, count and state")
		return
	}
	start, err := strconv.Atoi(args[0])
	if err != nil {
		g.fail(op, "invalid start index: "+args[0])
		return
	}
	count, err := strconv.Atoi(args[1])
	if err != nil {
		g.fail(op, "invalid port count: "+args[1])
		return
	}

	sel, err := flatSelection(start, count)
	if err != nil {
		g.fail(op, err.Error())
		return
	}
	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.ResetPorts(sel, cb)
	})
}

// configSetPortState implements the one supported combination: a
// holder cell token with the unknown state resets that position's
// holder. Everything else BluIce can send here is unimplemented.
func (g *Gateway) configSetPortState(op *Operation, args []string) {
	if len(args) >= 2 {
		if position, ok := isHolderResetToken(args[0]); ok && args[1] == robot.HolderUnknown.Code() {
			g.delegate(op, func(cb robot.Callback) error {
				return g.driver.ResetHolder(position, cb)
			})
			return
		}
	}
	g.fail(op, "Not implemented")
}

// configSetMounted records a port as mounted without moving the robot.
func (g *Gateway) configSetMounted(op *Operation, args []string) {
	if len(args) == 0 {
		g.fail(op, "missing port token")
		return
	}
	position, column, row, err := parseMountToken(args[0])
	if err != nil {
		g.fail(op, err.Error())
		return
	}
	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.SetMounted(position, column, row, cb)
	})
}

// configProbe decodes the flattened probe list and delegates.
func (g *Gateway) configProbe(op *Operation, args []string) {
	spec, err := probeSelection(args)
	if err != nil {
		g.fail(op, err.Error())
		return
	}
	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.Probe(spec, cb)
	})
}

// handleCalibrate runs a calibration. The historical magnet_post target
// maps to the toolset calibration.
func (g *Gateway) handleCalibrate(op *Operation, args []string) {
	if len(args) == 0 {
		g.fail(op, "missing calibration target")
		return
	}
	target := args[0]
	if target == "magnet_post" {
		target = "toolset"
	}
	runArgs := strings.Join(args[1:], " ")
	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.Calibrate(target, runArgs, cb)
	})
}

// handlePrepare serves the three prepare operations. BluIce expects the
// "OK to prepare" update before the robot starts moving.
func (g *Gateway) handlePrepare(op *Operation, _ []string) {
	if err := op.Update("OK to prepare"); err != nil {
		g.logWarn("prepare update send failed", "handle", op.Handle(), "error", err)
	}
	g.delegate(op, g.driver.PrepareForMount)
}

// parseMountArgs decodes the cassette letter, row and column arguments
// shared by mount and dismount.
func parseMountArgs(args []string) (robot.Position, string, int, error) {
	if len(args) < 3 {
		return "", "", 0, fmt.Errorf("expected cassette, row and column")
	}
	position, ok := robot.ParsePositionLetter(args[0])
	if !ok {
		return "", "", 0, fmt.Errorf("invalid cassette position: %s", args[0])
	}
	row, err := strconv.Atoi(args[1])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid row: %s", args[1])
	}
	return position, args[2], row, nil
}

func (g *Gateway) handleMount(op *Operation, args []string) {
	position, column, row, err := parseMountArgs(args)
	if err != nil {
		g.fail(op, err.Error())
		return
	}
	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.Mount(position, column, row, cb)
	})
}

func (g *Gateway) handleDismount(op *Operation, args []string) {
	position, column, row, err := parseMountArgs(args)
	if err != nil {
		g.fail(op, err.Error())
		return
	}
	g.delegate(op, func(cb robot.Callback) error {
		return g.driver.Dismount(position, column, row, cb)
	})
}

// handleMountNext remaps the six-argument mount-next form onto a plain
// mount of the next port. The current-mount context in the first three
// arguments is informational.
func (g *Gateway) handleMountNext(op *Operation, args []string) {
	if len(args) < 6 {
		g.fail(op, "expected current and next cassette, row and column")
		return
	}
	g.handleMount(op, args[3:6])
}

// handleStandby acknowledges the standby request. The robot parks
// itself after its post-operation timeout; there is nothing to do here.
func (g *Gateway) handleStandby(op *Operation, _ []string) {
	g.complete(op, "OK")
}
