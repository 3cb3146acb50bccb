package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// RecordOperation writes a completed operation to InfluxDB.
//
// This is the primary method for recording operation history.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - name: Operation name (e.g., "mount_crystal", "robot_config")
//   - handle: DCSS operation handle (e.g., "1.2")
//   - outcome: Terminal outcome ("normal" or "error")
//   - message: Completion message (omitted from the point when empty)
//   - duration: Wall time from dispatch to completion
//
// Example:
//
//	client.RecordOperation("mount_crystal", "2.4", "normal", "OK", 42*time.Second)
func (c *Client) RecordOperation(name, handle, outcome, message string, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"duration_ms": float64(duration) / float64(time.Millisecond),
		"handle":      handle,
	}
	if message != "" {
		fields["message"] = message
	}

	point := write.NewPoint(
		"operations",
		map[string]string{
			"operation": name,
			"outcome":   outcome,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// RecordStatus writes a published status word and state name.
//
// Called on every status publication, so transitions between states
// and status-flag changes are both visible in the series.
//
// Parameters:
//   - word: The composed status bitmask as published
//   - state: Robot state name (e.g., "idle", "prepare_mount_crystal")
func (c *Client) RecordStatus(word uint32, state string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"status",
		map[string]string{
			"state": state,
		},
		map[string]interface{}{
			"word": int64(word),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePortSummary writes per-position port state counts.
//
// Used for tracking cassette occupancy over time. Each key in counts
// becomes a field (e.g., "sample", "empty", "unknown", "bad").
//
// Parameters:
//   - position: Dewar position ("left", "middle", "right")
//   - counts: Port count per state code
func (c *Client) WritePortSummary(position string, counts map[string]int) {
	if !c.IsConnected() || len(counts) == 0 {
		return
	}

	fields := make(map[string]interface{}, len(counts))
	for state, n := range counts {
		fields[state] = n
	}

	point := write.NewPoint(
		"ports",
		map[string]string{
			"position": position,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "dhs-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
