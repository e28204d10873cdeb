package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// ServerConfig holds the HTTP/WebSocket panel settings.
type ServerConfig struct {
	Port           string   `json:"port"`
	WebFilesDir    string   `json:"web_files_dir"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// HIDConfig holds the keyboard polling settings.
type HIDConfig struct {
	Keyboards    []string `json:"keyboards"`      // profile names to drive
	PollInterval string   `json:"poll_interval"`  // cadence of the device cycle
	ReadTimeout  string   `json:"read_timeout"`   // per-device bounded read
	LedRateLimit float64  `json:"led_rate_limit"` // LED reports per second
	LedRateBurst int      `json:"led_rate_burst"`
}

// FrontConfig holds the front tracking service settings. An empty SystemID
// disables fronter polling; the keyboards still work as LED/layer devices.
type FrontConfig struct {
	SystemID     string `json:"system_id"`
	Token        string `json:"token"`
	BaseURL      string `json:"base_url"`
	GatewayURL   string `json:"gateway_url"`
	Timeout      string `json:"timeout"`
	RetryBackoff string `json:"retry_backoff"` // wait after a failed fetch
}

// MemberConfig binds one member's name, front service id and the device id
// baked into the keyboard firmware.
type MemberConfig struct {
	Name     string `json:"name"`
	FrontID  string `json:"front_id"`
	DeviceID uint8  `json:"device_id"`
}

// MQTTConfig holds the MQTT and Home Assistant discovery settings.
type MQTTConfig struct {
	Enabled            bool   `json:"enabled"`
	Broker             string `json:"broker"` // tcp://IP:PORT
	Username           string `json:"username"`
	Password           string `json:"password"`
	ClientID           string `json:"client_id"`
	TopicPrefix        string `json:"topic_prefix"`
	HADiscoveryEnabled bool   `json:"ha_discovery_enabled"`
	HADiscoveryPrefix  string `json:"ha_discovery_prefix"`
}

// Config is the top level structure of config.json.
type Config struct {
	Server  ServerConfig   `json:"server"`
	HID     HIDConfig      `json:"hid"`
	Front   FrontConfig    `json:"front"`
	Members []MemberConfig `json:"system_members"`
	MQTT    MQTTConfig     `json:"mqtt"`

	// File system settings
	PatternsDir   string `json:"patterns_dir"`
	SchedulesFile string `json:"schedules_file"`
}

// Load reads the file, parses the JSON and applies sanitizing, defaults and
// validation. A missing file yields a pure-defaults config.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			cfg.setDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to open config file '%s': %w", path, err)
	}
	defer file.Close()

	cfg := &Config{}
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	cfg.sanitize()
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) sanitize() {
	c.Server.Port = strings.TrimSpace(c.Server.Port)
	c.Server.WebFilesDir = strings.TrimSpace(c.Server.WebFilesDir)
	c.PatternsDir = strings.TrimSpace(c.PatternsDir)
	c.SchedulesFile = strings.TrimSpace(c.SchedulesFile)

	c.Front.SystemID = strings.TrimSpace(c.Front.SystemID)
	c.Front.BaseURL = strings.TrimSpace(c.Front.BaseURL)
	c.Front.GatewayURL = strings.TrimSpace(c.Front.GatewayURL)

	for i := range c.HID.Keyboards {
		c.HID.Keyboards[i] = strings.TrimSpace(strings.ToLower(c.HID.Keyboards[i]))
	}
	for i := range c.Members {
		c.Members[i].Name = strings.TrimSpace(c.Members[i].Name)
		c.Members[i].FrontID = strings.TrimSpace(c.Members[i].FrontID)
	}
}

func (c *Config) setDefaults() {
	// Server Defaults
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.WebFilesDir == "" {
		c.Server.WebFilesDir = "./web"
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:8080"}
	}

	// HID Defaults
	if len(c.HID.Keyboards) == 0 {
		c.HID.Keyboards = []string{"lily58", "navi10"}
	}
	if c.HID.PollInterval == "" {
		c.HID.PollInterval = "500ms"
	}
	if c.HID.ReadTimeout == "" {
		c.HID.ReadTimeout = "20ms"
	}
	if c.HID.LedRateLimit <= 0 {
		c.HID.LedRateLimit = 100.0
	}
	if c.HID.LedRateBurst <= 0 {
		c.HID.LedRateBurst = 8
	}

	// Front Defaults
	if c.Front.Timeout == "" {
		c.Front.Timeout = "10s"
	}
	if c.Front.RetryBackoff == "" {
		c.Front.RetryBackoff = "5s"
	}

	// File Defaults
	if c.PatternsDir == "" {
		c.PatternsDir = "patterns"
	}
	if c.SchedulesFile == "" {
		c.SchedulesFile = "schedules.json"
	}

	// MQTT Defaults
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://localhost:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "qmkhidgear"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "qmkgear"
	}
	if c.MQTT.HADiscoveryPrefix == "" {
		c.MQTT.HADiscoveryPrefix = "homeassistant"
	}
}

func (c *Config) validate() error {
	for key, value := range map[string]string{
		"hid.poll_interval":   c.HID.PollInterval,
		"hid.read_timeout":    c.HID.ReadTimeout,
		"front.timeout":       c.Front.Timeout,
		"front.retry_backoff": c.Front.RetryBackoff,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("config error: '%s' is not a duration: %q", key, value)
		}
	}
	if c.HID.LedRateLimit <= 0 {
		return fmt.Errorf("config error: 'hid.led_rate_limit' must be positive")
	}
	return nil
}

// Duration parses a duration field that validate() already vetted.
func Duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
