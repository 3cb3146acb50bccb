package robot

import (
	"encoding/json"
	"time"
)

// MQTT message types for the robot link. All topics are relative to the
// configured prefix:
//
//	<prefix>/state/full   retained full State snapshots (robot -> gateway)
//	<prefix>/state/delta  single attribute changes      (robot -> gateway)
//	<prefix>/operation    command progress events       (robot -> gateway)
//	<prefix>/command      command requests              (gateway -> robot)

// CommandMessage is sent from the gateway to the robot controller to
// start an action.
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with
	// progress events.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Action is the command name (e.g. "mount", "probe", "calibrate").
	Action string `json:"action"`

	// Params contains action-specific values.
	Params *CommandParams `json:"params,omitempty"`
}

// CommandParams carries the parameters of a robot command. Only the
// fields relevant to the action are set.
type CommandParams struct {
	// Output and Value select a digital output and its new state.
	Output Output `json:"output,omitempty"`
	Value  *int   `json:"value,omitempty"`

	// Position, Column and Row address a port for mount, dismount and
	// set_mounted. Rows are 1-based.
	Position Position `json:"position,omitempty"`
	Column   string   `json:"column,omitempty"`
	Row      int      `json:"row,omitempty"`

	// Target and RunArgs parameterise a calibration run.
	Target  string `json:"target,omitempty"`
	RunArgs string `json:"run_args,omitempty"`

	// Ports holds per-position 96-element selection masks for
	// reset_ports and probe.
	Ports map[Position][]int `json:"ports,omitempty"`
}

// EventMessage is sent from the robot controller to report command
// progress. A command produces zero or more "update" events followed by
// exactly one "end" event.
type EventMessage struct {
	// ID is the ID from the original command.
	ID string `json:"id"`

	// Stage is "update" while the command runs and "end" when it
	// finishes.
	Stage Stage `json:"stage"`

	// Message is free-text progress or result information.
	Message string `json:"message,omitempty"`

	// Error is non-empty when the command failed.
	Error string `json:"error,omitempty"`
}

// DeltaMessage announces a change to a single state attribute. Value is
// the JSON encoding of the attribute's new value.
type DeltaMessage struct {
	Attr  string          `json:"attr"`
	Value json.RawMessage `json:"value"`
}

// Stage identifies a phase in a command's lifecycle.
type Stage string

const (
	// StageUpdate marks intermediate progress.
	StageUpdate Stage = "update"

	// StageEnd marks completion; the event's Error field decides
	// success or failure.
	StageEnd Stage = "end"
)

// Callback receives progress events for a robot command. It is invoked
// once per update stage and exactly once with StageEnd when the command
// finishes; err is non-nil when the controller reports a failure.
type Callback func(stage Stage, message string, err error)

// Robot command actions.
const (
	actionClear              = "clear"
	actionClearAll           = "clear_all"
	actionSetOutput          = "set_output"
	actionResetPorts         = "reset_ports"
	actionResetHolder        = "reset_holder"
	actionResetMountCounters = "reset_mount_counters"
	actionSetMounted         = "set_mounted"
	actionProbe              = "probe"
	actionCalibrate          = "calibrate"
	actionPrepareForMount    = "prepare_for_mount"
	actionMount              = "mount"
	actionDismount           = "dismount"
	actionAbort              = "abort"
	actionReportState        = "report_state"
)
