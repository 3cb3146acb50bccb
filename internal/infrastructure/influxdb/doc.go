// Package influxdb provides InfluxDB connectivity for the robot DHS.
//
// It wraps the official influxdb-client-go v2 library with gateway-specific
// patterns for connection management, event writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series history for:
//   - Operation completions with outcome and duration
//   - Status word publications and state transitions
//   - Cassette port occupancy summaries
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "mxrobo",
//	    Bucket:  "robot_events",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record an operation outcome
//	client.RecordOperation("mount_crystal", "2.4", "normal", "OK", 42*time.Second)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This keeps the gateway's publish path free of storage latency.
package influxdb
