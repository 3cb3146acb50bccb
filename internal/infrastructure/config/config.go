package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the robot DHS.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Beamline  BeamlineConfig  `yaml:"beamline"`
	DCSS      DCSSConfig      `yaml:"dcss"`
	Robot     RobotConfig     `yaml:"robot"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// BeamlineConfig identifies the beamline this host serves.
type BeamlineConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DCSSConfig contains control server connection settings.
// Timeouts and intervals are in seconds.
type DCSSConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ClientName is the hardware host name announced at login.
	ClientName string `yaml:"client_name"`

	ConnectTimeout    int `yaml:"connect_timeout"`
	ReadTimeout       int `yaml:"read_timeout"`
	ReconnectInterval int `yaml:"reconnect_interval"`
}

// RobotConfig contains robot controller link settings.
type RobotConfig struct {
	// MQTT is the broker connection carrying the robot link.
	MQTT MQTTConfig `yaml:"mqtt"`

	// TopicPrefix is the root of the robot link topics.
	TopicPrefix string `yaml:"topic_prefix"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for the event
// history sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ROBODHS_SECTION_KEY
// For example: ROBODHS_DATABASE_PATH, ROBODHS_DCSS_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Beamline: BeamlineConfig{
			ID:       "bl-001",
			Name:     "Beamline",
			Timezone: "UTC",
		},
		DCSS: DCSSConfig{
			Host:              "localhost",
			Port:              14242,
			ClientName:        "robot",
			ConnectTimeout:    10,
			ReadTimeout:       30,
			ReconnectInterval: 5,
		},
		Robot: RobotConfig{
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{
					Host:     "localhost",
					Port:     1883,
					ClientID: "robodhs",
				},
				QoS: 1,
				Reconnect: MQTTReconnectConfig{
					InitialDelay: 1,
					MaxDelay:     60,
					MaxAttempts:  0,
				},
			},
			TopicPrefix: "robodhs/robot",
		},
		Database: DatabaseConfig{
			Path:        "./data/robodhs.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ROBODHS_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// DCSS
	if v := os.Getenv("ROBODHS_DCSS_HOST"); v != "" {
		cfg.DCSS.Host = v
	}

	// Database
	if v := os.Getenv("ROBODHS_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Robot link broker
	if v := os.Getenv("ROBODHS_MQTT_HOST"); v != "" {
		cfg.Robot.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ROBODHS_MQTT_USERNAME"); v != "" {
		cfg.Robot.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ROBODHS_MQTT_PASSWORD"); v != "" {
		cfg.Robot.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ROBODHS_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("ROBODHS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Beamline validation
	if c.Beamline.ID == "" {
		errs = append(errs, "beamline.id is required")
	}

	// DCSS validation
	if c.DCSS.Host == "" {
		errs = append(errs, "dcss.host is required")
	}
	if c.DCSS.Port < 1 || c.DCSS.Port > 65535 {
		errs = append(errs, "dcss.port must be between 1 and 65535")
	}
	if c.DCSS.ClientName == "" {
		errs = append(errs, "dcss.client_name is required")
	}

	// Robot link validation
	if c.Robot.MQTT.QoS < 0 || c.Robot.MQTT.QoS > 2 {
		errs = append(errs, "robot.mqtt.qos must be 0, 1, or 2")
	}
	if c.Robot.TopicPrefix == "" {
		errs = append(errs, "robot.topic_prefix is required")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DCSSAddress returns the control server endpoint as host:port.
func (c *Config) DCSSAddress() string {
	return fmt.Sprintf("%s:%d", c.DCSS.Host, c.DCSS.Port)
}

// GetDCSSConnectTimeout returns the control server connect timeout as a Duration.
func (c *Config) GetDCSSConnectTimeout() time.Duration {
	return time.Duration(c.DCSS.ConnectTimeout) * time.Second
}

// GetDCSSReadTimeout returns the control server read timeout as a Duration.
func (c *Config) GetDCSSReadTimeout() time.Duration {
	return time.Duration(c.DCSS.ReadTimeout) * time.Second
}

// GetDCSSReconnectInterval returns the control server reconnect interval as a Duration.
func (c *Config) GetDCSSReconnectInterval() time.Duration {
	return time.Duration(c.DCSS.ReconnectInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
