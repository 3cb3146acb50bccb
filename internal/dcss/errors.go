package dcss

import "errors"

// Domain errors for the DCSS transport package.
var (
	// ErrNotConnected is returned when a send is attempted while the
	// session is down.
	ErrNotConnected = errors.New("dcss: not connected to control server")

	// ErrConnectionFailed is returned when dialing or the login
	// exchange fails.
	ErrConnectionFailed = errors.New("dcss: connection to control server failed")

	// ErrSendFailed is returned when writing an outbound message fails.
	ErrSendFailed = errors.New("dcss: message send failed")

	// ErrBadHeader is returned when a frame header cannot be parsed.
	ErrBadHeader = errors.New("dcss: invalid frame header")

	// ErrBadHandshake is returned when the server opens the session
	// with something other than a client type request.
	ErrBadHandshake = errors.New("dcss: unexpected login message")

	// ErrProtocolDesync is returned when the inbound stream can no
	// longer be framed and the connection must be rebuilt.
	ErrProtocolDesync = errors.New("dcss: protocol desync detected")
)
