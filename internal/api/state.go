package api

import (
	"fmt"
	"net/http"

	"github.com/mxrobo/robodhs/internal/gateway"
)

// StatusResponse is the computed robot status as published to the
// control server.
type StatusResponse struct {
	Word   uint32 `json:"word"`
	Hex    string `json:"hex"`
	State  string `json:"state"`
	Sample string `json:"sample"`
}

// StatsResponse reports the gateway operation counters.
type StatsResponse struct {
	OperationsStarted   uint64 `json:"operations_started"`
	OperationsCompleted uint64 `json:"operations_completed"`
	OperationsFailed    uint64 `json:"operations_failed"`
	OperationsRejected  uint64 `json:"operations_rejected"`
	StringsPublished    uint64 `json:"strings_published"`
	LogsSent            uint64 `json:"logs_sent"`
	CurrentOperation    string `json:"current_operation"`
}

// handleGetState returns the full robot state snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.gateway.Snapshot())
}

// hexWord renders a status word the way operators read it on the
// beamline consoles.
func hexWord(word uint32) string {
	return fmt.Sprintf("%#x", word)
}

// handleGetStatus returns the composed status word, the running
// operation name and the sample location.
func (s *Server) handleGetStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.gateway.Snapshot()
	word := uint32(gateway.ComputeStatus(snap))

	writeJSON(w, http.StatusOK, StatusResponse{
		Word:   word,
		Hex:    hexWord(word),
		State:  s.gateway.CurrentOperation(),
		Sample: gateway.SampleState(snap),
	})
}

// handleGetStats returns the gateway operation counters.
func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.gateway.Stats()

	writeJSON(w, http.StatusOK, StatsResponse{
		OperationsStarted:   stats.OperationsStarted,
		OperationsCompleted: stats.OperationsCompleted,
		OperationsFailed:    stats.OperationsFailed,
		OperationsRejected:  stats.OperationsRejected,
		StringsPublished:    stats.StringsPublished,
		LogsSent:            stats.LogsSent,
		CurrentOperation:    stats.CurrentOperation,
	})
}
