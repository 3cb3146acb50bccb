// Package api implements the HTTP REST API and WebSocket server for the
// robot DHS.
//
// This package provides:
//   - REST endpoints for robot state, computed status, and the operation journal
//   - WebSocket hub for real-time state and operation broadcasts
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - TLS support for production deployments
//
// # Architecture
//
// The API server is a read-only observation surface beside the DCSS link:
// beamline staff and monitoring dashboards inspect what the gateway is doing
// without disturbing it. Commands reach the robot exclusively through DCSS
// operations; nothing in this package mutates robot state.
//
//	┌──────────────┐   HTTP/WS    ┌─────────────┐   observer   ┌─────────┐
//	│  dashboards  │─────────────▶│  API server │◀─────────────│ Gateway │
//	│  (browsers)  │◀─────────────│  (this pkg) │              │         │
//	└──────────────┘  state JSON  └─────────────┘              └─────────┘
//
// # Security
//
// The server binds to the beamline's trusted control network and carries no
// authentication of its own, matching the rest of the beamline hardware
// surface. Origin checking is handled by the CORS middleware.
//
// # Graceful Degradation
//
// Journal, time-series, and link-statistics dependencies are optional: the
// affected endpoints report unavailable or omit their sections rather than
// failing the whole server.
package api
