package robot

import "errors"

// Domain errors for the robot client.
var (
	// ErrUnknownAttribute is returned when a state delta names an
	// attribute the client does not track.
	ErrUnknownAttribute = errors.New("robot: unknown attribute")

	// ErrBadMessage is returned when a message from the controller
	// cannot be decoded.
	ErrBadMessage = errors.New("robot: malformed message")

	// ErrPublishFailed is returned when a command could not be handed
	// to the broker.
	ErrPublishFailed = errors.New("robot: command publish failed")
)
