// Package mqtt provides MQTT client connectivity for the robot DHS.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The robot controller is reached over MQTT. The broker (Mosquitto)
// decouples the gateway from the controller firmware: retained state
// snapshots survive gateway restarts and either side can reconnect
// without the other noticing.
//
//	Robot DHS ↔ MQTT Broker ↔ Robot Controller
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.Robot.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to incremental robot state updates
//	err = client.Subscribe(mqtt.Topics{}.RobotStateDelta(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish command
//	topic := mqtt.Topics{}.RobotCommand()
//	client.Publish(topic, []byte(`{"action":"clear"}`), 1, false)
package mqtt
