package gateway

import "github.com/mxrobo/robodhs/internal/robot"

// ComputeStatus returns the status word published to DCSS: the
// controller's own status register with environmental conditions
// layered on top. The safety gate and home switch are wired past the
// controller, so their bits are derived here rather than trusted from
// the register.
func ComputeStatus(s *robot.State) robot.StatusWord {
	w := s.Status
	if s.SafetyGate != 0 {
		w |= robot.ReasonSafeguard
	}
	if s.AtHome != 1 {
		w |= robot.ReasonNotHome
	}
	return w
}
