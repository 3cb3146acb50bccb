// Package dcss implements the hardware-client transport to a DCSS
// control server.
//
// DCSS (Distributed Control System Server) coordinates beamline
// hardware through persistent TCP sessions. This package maintains one
// such session, delivering decoded server messages to a callback and
// serializing outbound lines onto the socket.
//
// # Architecture
//
//	┌─────────────────┐    TCP    ┌─────────────────┐
//	│      DCSS       │◄─────────►│   DCSS Client   │──► OnMessage
//	│  control server │           │   (this pkg)    │◄── Send
//	└─────────────────┘           └─────────────────┘
//
// # Protocol
//
// A session begins with a raw 200-byte exchange: the server sends
// stoc_send_client_type and the client replies with its hardware name.
// Every message after that is framed with a 26-byte ASCII header
// carrying the payload length. The payload is a space-separated command
// line; this package splits it into a command and arguments and leaves
// interpretation to the consumer.
//
// # Key Responsibilities
//
//   - Dial the control server and perform the login exchange
//   - Decode framed messages and queue them for the message callback
//   - Serialize concurrent outbound sends onto the socket
//   - Reconnect with exponential backoff when the session drops,
//     re-running the login exchange and firing the connect callback
//   - Track transfer statistics for health reporting
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. The message
// callback runs on a single worker goroutine so messages are delivered
// in arrival order; panics in the callback are recovered and logged.
package dcss
