package mqtt

import "fmt"

// Topic prefixes for the robot DHS MQTT namespace.
//
// The robot link uses the flat scheme: robodhs/robot/{channel}, with
// message payloads defined in internal/robot/messages.go.
const (
	// TopicPrefix is the root of all robot DHS topics.
	TopicPrefix = "robodhs"

	// TopicPrefixRobot is the default root of the robot link topics.
	// Overridable via robot.topic_prefix in config.
	TopicPrefixRobot = "robodhs/robot"

	// TopicPrefixSystem is the base for gateway liveness topics.
	TopicPrefixSystem = "robodhs/system"
)

// Topics provides builders for robot DHS MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.RobotStateFull()
//	// Returns: "robodhs/robot/state/full"
type Topics struct{}

// RobotStateFull returns the topic for retained full state snapshots
// from the robot controller.
//
// Example: robodhs/robot/state/full
func (Topics) RobotStateFull() string {
	return fmt.Sprintf("%s/state/full", TopicPrefixRobot)
}

// RobotStateDelta returns the topic for incremental attribute updates
// from the robot controller.
//
// Example: robodhs/robot/state/delta
func (Topics) RobotStateDelta() string {
	return fmt.Sprintf("%s/state/delta", TopicPrefixRobot)
}

// RobotOperation returns the topic for operation progress events from
// the robot controller.
//
// Example: robodhs/robot/operation
func (Topics) RobotOperation() string {
	return fmt.Sprintf("%s/operation", TopicPrefixRobot)
}

// RobotCommand returns the topic for commands to the robot controller.
//
// Example: robodhs/robot/command
func (Topics) RobotCommand() string {
	return fmt.Sprintf("%s/command", TopicPrefixRobot)
}

// SystemStatus returns the gateway liveness topic. The broker publishes
// the LWT payload here if the gateway dies unexpectedly.
//
// Example: robodhs/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllRobotTopics returns a pattern matching the whole robot link.
//
// Pattern: robodhs/robot/#
func (Topics) AllRobotTopics() string {
	return fmt.Sprintf("%s/#", TopicPrefixRobot)
}

// AllTopics returns a pattern matching all robot DHS topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: robodhs/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
