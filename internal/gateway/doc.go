// Package gateway translates between the DCSS experiment control
// system and the sample-mounting robot.
//
// # Architecture
//
// The gateway sits between two live connections and owns all protocol
// translation:
//
//	┌──────────┐  operations   ┌─────────────────┐  commands   ┌──────────┐
//	│   DCSS   │──────────────▶│     Gateway     │────────────▶│  Robot   │
//	│          │◀──────────────│   (this pkg)    │◀────────────│  Driver  │
//	└──────────┘  status       └─────────────────┘  state      └──────────┘
//	              strings
//
// # Key Responsibilities
//
//   - Dispatch DCSS operations (mount, probe, calibrate, config) to
//     robot driver actions
//   - Enforce the single-flight policy: one driver-touching operation
//     at a time, later arrivals rejected with a busy error
//   - Render robot state into the DCSS string set (robot_status,
//     robot_state, robot_cassette, robot_force_*, ts_robot_cal,
//     robot_output, robot_input)
//   - Forward robot task and fault messages as DCSS log lines
//
// # Operation Lifecycle
//
// Every dispatched operation completes exactly once, on every path:
// argument validation failures and driver send failures complete it
// synchronously with an error, driver-delegating handlers complete it
// from the driver's end-stage callback. Completion releases the busy
// slot, journals the outcome and republishes the status string.
//
// # Thread Safety
//
// Gateway methods are safe for concurrent use. DCSS message callbacks
// and robot change callbacks may arrive on different goroutines.
package gateway
