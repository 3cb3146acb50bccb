// robodhs is the device host bridging the sample-mounting robot to the
// beamline control server.
//
// Upstream it speaks the DCSS hardware protocol, keeping the BluIce
// string set current and serving the mount, dismount, probe and
// maintenance operations. Downstream it drives the robot controller
// over MQTT. A local HTTP API exposes state, operation history and a
// live WebSocket stream for diagnostics.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/mxrobo/robodhs/migrations"

	"github.com/mxrobo/robodhs/internal/api"
	"github.com/mxrobo/robodhs/internal/dcss"
	"github.com/mxrobo/robodhs/internal/gateway"
	"github.com/mxrobo/robodhs/internal/infrastructure/config"
	"github.com/mxrobo/robodhs/internal/infrastructure/database"
	"github.com/mxrobo/robodhs/internal/infrastructure/influxdb"
	"github.com/mxrobo/robodhs/internal/infrastructure/logging"
	"github.com/mxrobo/robodhs/internal/infrastructure/mqtt"
	"github.com/mxrobo/robodhs/internal/journal"
	"github.com/mxrobo/robodhs/internal/robot"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting robodhs",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "beamline", cfg.Beamline.ID)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Operation journal
	repo := journal.NewRepository(db.DB)

	// Connect to MQTT broker (robot controller link)
	mqttClient, err := mqtt.Connect(cfg.Robot.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Robot.MQTT.Broker.Host, cfg.Robot.MQTT.Broker.Port),
		"client_id", cfg.Robot.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Robot controller client
	robotClient, err := robot.NewClient(robot.ClientOptions{
		Conn:        &mqttRobotAdapter{client: mqttClient},
		TopicPrefix: cfg.Robot.TopicPrefix,
		QoS:         byte(cfg.Robot.MQTT.QoS),
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("creating robot client: %w", err)
	}

	// Control server client
	dcssClient, err := dcss.New(dcss.Config{
		Address:           cfg.DCSSAddress(),
		ClientName:        cfg.DCSS.ClientName,
		ConnectTimeout:    cfg.GetDCSSConnectTimeout(),
		ReadTimeout:       cfg.GetDCSSReadTimeout(),
		ReconnectInterval: cfg.GetDCSSReconnectInterval(),
	})
	if err != nil {
		return fmt.Errorf("creating control server client: %w", err)
	}
	dcssClient.SetLogger(log)

	// Gateway events go to the time-series store and the WebSocket hub
	sinks := &eventFanout{}
	if influxClient != nil {
		sinks.Add(influxClient)
	}

	// Gateway: operation dispatch and string publication
	gw, err := gateway.New(gateway.Options{
		Sender:  dcssClient,
		Driver:  robotClient,
		Journal: repo,
		Sink:    sinks,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}
	defer gw.Close()

	// API server
	apiServer, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Gateway: gw,
		Journal: repo,
		DCSS:    dcssClient,
		Robot:   robotClient,
		DB:      db,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	sinks.Add(apiServer)

	// Fan robot changes out to the DCSS strings; refresh the occupancy
	// summary when holder contents change.
	robotClient.SetOnChange(func(attr string) {
		gw.OnRobotChange(attr)
		if influxClient != nil && (attr == robot.AttrSnapshot || attr == "port_states") {
			recordPortSummaries(influxClient, robotClient.Snapshot())
		}
	})

	if err := robotClient.Start(); err != nil {
		return fmt.Errorf("starting robot client: %w", err)
	}
	defer func() {
		log.Info("stopping robot client")
		robotClient.Stop()
	}()
	log.Info("robot link up", "prefix", cfg.Robot.TopicPrefix)

	// Route inbound control server traffic to the gateway. The login
	// callback republishes the full string set on every (re)connection.
	dcssClient.SetOnConnect(gw.HandleLogin)
	dcssClient.SetOnMessage(func(msg dcss.Message) {
		routeMessage(gw, log, msg)
	})

	if err := dcssClient.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to control server: %w", err)
	}
	defer func() {
		log.Info("closing control server connection")
		if closeErr := dcssClient.Close(); closeErr != nil {
			log.Error("error closing control server connection", "error", closeErr)
		}
	}()
	log.Info("control server connected",
		"address", cfg.DCSSAddress(),
		"client_name", cfg.DCSS.ClientName,
	)

	// Start API server
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, dcssClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// API server, control server, robot client, gateway, InfluxDB,
	// MQTT, database.

	log.Info("robodhs stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ROBODHS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ROBODHS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - dcssClient: Control server client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//   - apiServer: API server to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, dcssClient *dcss.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if err := dcssClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("control server: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := apiServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}

	return nil
}

// operationRouter is the slice of the gateway the message router needs.
type operationRouter interface {
	HandleOperation(name, handle string, args []string)
	HandleAbort()
}

// routeMessage dispatches one inbound control server message to the
// gateway.
func routeMessage(gw operationRouter, log *logging.Logger, msg dcss.Message) {
	switch msg.Command {
	case dcss.MsgStartOperation:
		if len(msg.Args) < 2 {
			log.Warn("malformed start operation", "args", msg.Args)
			return
		}
		gw.HandleOperation(msg.Args[0], msg.Args[1], msg.Args[2:])

	case dcss.MsgAbortAll:
		gw.HandleAbort()

	case dcss.MsgRegisterString, dcss.MsgRegisterOperation:
		// The full string set is published at login; registrations
		// need no reply.

	default:
		log.Debug("ignoring control server message", "command", msg.Command)
	}
}

// recordPortSummaries pushes per-position occupancy counts to the
// time-series store.
func recordPortSummaries(sink *influxdb.Client, s *robot.State) {
	for _, pos := range robot.Positions() {
		counts := make(map[string]int, 4)
		for _, st := range s.PortStates[pos] {
			counts[portStateName(st)]++
		}
		sink.WritePortSummary(string(pos), counts)
	}
}

// portStateName maps a port occupancy state to its time-series field
// name.
func portStateName(s robot.PortState) string {
	switch s {
	case robot.PortFull:
		return "sample"
	case robot.PortEmpty:
		return "empty"
	case robot.PortError:
		return "bad"
	default:
		return "unknown"
	}
}

// mqttRobotAdapter adapts the infrastructure MQTT client to the robot
// link's MQTTConn interface. The Subscribe handler types differ: the
// infrastructure client takes its named MessageHandler type, the robot
// link a plain function.
type mqttRobotAdapter struct {
	client *mqtt.Client
}

// Publish implements robot.MQTTConn.
func (a *mqttRobotAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements robot.MQTTConn.
func (a *mqttRobotAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte) error) error {
	return a.client.Subscribe(topic, qos, handler)
}

// IsConnected implements robot.MQTTConn.
func (a *mqttRobotAdapter) IsConnected() bool {
	return a.client.IsConnected()
}

// eventFanout duplicates gateway events to every registered sink: the
// time-series store and the WebSocket hub both want them.
type eventFanout struct {
	mu    sync.RWMutex
	sinks []gateway.EventSink
}

// Add registers a sink. Safe to call after the fanout is in use.
func (f *eventFanout) Add(sink gateway.EventSink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, sink)
	f.mu.Unlock()
}

// RecordOperation implements gateway.EventSink.
func (f *eventFanout) RecordOperation(name, handle, outcome, message string, duration time.Duration) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		s.RecordOperation(name, handle, outcome, message, duration)
	}
}

// RecordStatus implements gateway.EventSink.
func (f *eventFanout) RecordStatus(word uint32, state string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.sinks {
		s.RecordStatus(word, state)
	}
}
