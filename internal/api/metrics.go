package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	WebSocket     WSMetrics       `json:"websocket"`
	Gateway       GatewayMetrics  `json:"gateway"`
	DCSS          *DCSSMetrics    `json:"dcss,omitempty"`
	Robot         *RobotMetrics   `json:"robot,omitempty"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// GatewayMetrics contains gateway operation counters.
type GatewayMetrics struct {
	OperationsStarted   uint64 `json:"operations_started"`
	OperationsCompleted uint64 `json:"operations_completed"`
	OperationsFailed    uint64 `json:"operations_failed"`
	OperationsRejected  uint64 `json:"operations_rejected"`
	StringsPublished    uint64 `json:"strings_published"`
	CurrentOperation    string `json:"current_operation"`
}

// DCSSMetrics contains control-server link statistics.
type DCSSMetrics struct {
	Connected    bool   `json:"connected"`
	Reconnecting bool   `json:"reconnecting"`
	MessagesTx   uint64 `json:"messages_tx"`
	MessagesRx   uint64 `json:"messages_rx"`
	Reconnects   uint64 `json:"reconnects"`
	Errors       uint64 `json:"errors"`
}

// RobotMetrics contains robot link statistics.
type RobotMetrics struct {
	Connected       bool   `json:"connected"`
	CommandsSent    uint64 `json:"commands_sent"`
	EventsReceived  uint64 `json:"events_received"`
	DeltasReceived  uint64 `json:"deltas_received"`
	PendingCommands int    `json:"pending_commands"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	// Collect runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	gwStats := s.gateway.Stats()

	// Build metrics response
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Gateway: GatewayMetrics{
			OperationsStarted:   gwStats.OperationsStarted,
			OperationsCompleted: gwStats.OperationsCompleted,
			OperationsFailed:    gwStats.OperationsFailed,
			OperationsRejected:  gwStats.OperationsRejected,
			StringsPublished:    gwStats.StringsPublished,
			CurrentOperation:    gwStats.CurrentOperation,
		},
	}

	// WebSocket metrics (hub exists only after Start)
	if s.hub != nil {
		metrics.WebSocket = WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		}
	}

	// Control-server link metrics (if available)
	if s.dcss != nil {
		stats := s.dcss.Stats()
		metrics.DCSS = &DCSSMetrics{
			Connected:    stats.Connected,
			Reconnecting: stats.Reconnecting,
			MessagesTx:   stats.MessagesTx,
			MessagesRx:   stats.MessagesRx,
			Reconnects:   stats.ReconnectsTotal,
			Errors:       stats.ErrorsTotal,
		}
	}

	// Robot link metrics (if available)
	if s.robot != nil {
		stats := s.robot.Stats()
		metrics.Robot = &RobotMetrics{
			Connected:       stats.Connected,
			CommandsSent:    stats.CommandsSent,
			EventsReceived:  stats.EventsReceived,
			DeltasReceived:  stats.DeltasReceived,
			PendingCommands: stats.PendingCommands,
		}
	}

	// Database stats (if available)
	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
