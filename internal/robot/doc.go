// Package robot provides the client for the sample-mounting robot
// controller. It maintains a live snapshot of everything the robot
// reports and issues commands over MQTT.
//
// # Architecture
//
// The robot controller publishes its state and command progress over
// MQTT; the gateway consumes them through this package:
//
//	┌─────────────────┐          ┌─────────────────┐
//	│     Gateway     │   MQTT   │      Robot      │
//	│  (this client)  │◄────────►│   Controller    │
//	└─────────────────┘          └─────────────────┘
//
// # Key Responsibilities
//
//   - Subscribe to full state snapshots and single-attribute deltas
//   - Maintain a coherent State that callers can snapshot at any time
//   - Send commands (mount, probe, calibrate, ...) with correlation IDs
//   - Route command progress events back to per-command callbacks
//
// # State Model
//
// State is a plain value snapshot. The client owns the live copy;
// Snapshot returns a deep clone so callers never observe partial
// updates. Attribute changes are announced through a single change
// callback carrying the attribute name.
//
// # Thread Safety
//
// All exported methods on Client are safe for concurrent use from
// multiple goroutines. Change and command callbacks are dispatched from
// a single worker goroutine, so events for the same command arrive in
// order.
package robot
