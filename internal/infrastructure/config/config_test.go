package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
beamline:
  id: "bl13-1"
  name: "BL13-1"
dcss:
  host: "dcss.beamline.local"
  port: 14242
robot:
  mqtt:
    broker:
      host: "localhost"
      port: 1883
      client_id: "robodhs-test"
    qos: 1
  topic_prefix: "robodhs/robot"
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "0.0.0.0"
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Beamline.ID != "bl13-1" {
		t.Errorf("Beamline.ID = %q, want %q", cfg.Beamline.ID, "bl13-1")
	}

	if cfg.DCSS.Host != "dcss.beamline.local" {
		t.Errorf("DCSS.Host = %q, want %q", cfg.DCSS.Host, "dcss.beamline.local")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.Robot.MQTT.Broker.ClientID != "robodhs-test" {
		t.Errorf("Robot.MQTT.Broker.ClientID = %q, want %q", cfg.Robot.MQTT.Broker.ClientID, "robodhs-test")
	}

	// Defaults survive a partial file
	if cfg.DCSS.ClientName != "robot" {
		t.Errorf("DCSS.ClientName = %q, want default %q", cfg.DCSS.ClientName, "robot")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
beamline:
  id: ""
database:
  path: "/tmp/test.db"
api:
  port: 8080
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty beamline.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Beamline: BeamlineConfig{ID: "bl-001"},
			DCSS: DCSSConfig{
				Host:       "localhost",
				Port:       14242,
				ClientName: "robot",
			},
			Robot: RobotConfig{
				MQTT:        MQTTConfig{QoS: 1},
				TopicPrefix: "robodhs/robot",
			},
			Database: DatabaseConfig{Path: "/data/robodhs.db"},
			API:      APIConfig{Port: 8080},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing beamline ID",
			mutate:  func(c *Config) { c.Beamline.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing dcss host",
			mutate:  func(c *Config) { c.DCSS.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid dcss port",
			mutate:  func(c *Config) { c.DCSS.Port = 0 },
			wantErr: true,
		},
		{
			name:    "missing client name",
			mutate:  func(c *Config) { c.DCSS.ClientName = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.Robot.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing topic prefix",
			mutate:  func(c *Config) { c.Robot.TopicPrefix = "" },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid api port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid api port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
		DCSS: DCSSConfig{
			ConnectTimeout:    10,
			ReadTimeout:       25,
			ReconnectInterval: 5,
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}

	if got := cfg.GetDCSSConnectTimeout().Seconds(); got != 10 {
		t.Errorf("GetDCSSConnectTimeout() = %v, want 10", got)
	}

	if got := cfg.GetDCSSReadTimeout().Seconds(); got != 25 {
		t.Errorf("GetDCSSReadTimeout() = %v, want 25", got)
	}

	if got := cfg.GetDCSSReconnectInterval().Seconds(); got != 5 {
		t.Errorf("GetDCSSReconnectInterval() = %v, want 5", got)
	}
}

func TestConfig_DCSSAddress(t *testing.T) {
	cfg := &Config{DCSS: DCSSConfig{Host: "dcss.local", Port: 14242}}
	if got := cfg.DCSSAddress(); got != "dcss.local:14242" {
		t.Errorf("DCSSAddress() = %q, want %q", got, "dcss.local:14242")
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("ROBODHS_DCSS_HOST", "dcss.example.com")
	t.Setenv("ROBODHS_DATABASE_PATH", "/custom/path.db")
	t.Setenv("ROBODHS_MQTT_HOST", "mqtt.example.com")
	t.Setenv("ROBODHS_MQTT_USERNAME", "testuser")
	t.Setenv("ROBODHS_MQTT_PASSWORD", "testpass")
	t.Setenv("ROBODHS_API_HOST", "192.168.1.1")
	t.Setenv("ROBODHS_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.DCSS.Host != "dcss.example.com" {
		t.Errorf("DCSS.Host = %q, want %q", cfg.DCSS.Host, "dcss.example.com")
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.Robot.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("Robot.MQTT.Broker.Host = %q, want %q", cfg.Robot.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.Robot.MQTT.Auth.Username != "testuser" {
		t.Errorf("Robot.MQTT.Auth.Username = %q, want %q", cfg.Robot.MQTT.Auth.Username, "testuser")
	}

	if cfg.Robot.MQTT.Auth.Password != "testpass" {
		t.Errorf("Robot.MQTT.Auth.Password = %q, want %q", cfg.Robot.MQTT.Auth.Password, "testpass")
	}

	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Beamline.ID == "" {
		t.Error("defaultConfig should have non-empty Beamline.ID")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.DCSS.ClientName != "robot" {
		t.Errorf("defaultConfig DCSS.ClientName = %q, want %q", cfg.DCSS.ClientName, "robot")
	}

	if cfg.Robot.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig Robot.MQTT.Broker.Port = %d, want 1883", cfg.Robot.MQTT.Broker.Port)
	}

	if cfg.API.Port != 8080 {
		t.Errorf("defaultConfig API.Port = %d, want 8080", cfg.API.Port)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig Validate() error = %v", err)
	}
}
