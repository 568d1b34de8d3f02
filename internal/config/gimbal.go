package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/gimbal/internal/gimbal/address"
	"github.com/banshee-data/gimbal/internal/gimbal/frame"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/gimbal.defaults.json"

// Transport kinds.
const (
	TransportUDP    = "udp"
	TransportSerial = "serial"
)

// GimbalConfig is the daemon and console configuration. Every field is
// optional; the Get* methods supply defaults for omitted values so partial
// files are safe.
type GimbalConfig struct {
	// Link
	Transport   *string `json:"transport,omitempty"` // "udp" or "serial"
	CameraIP    *string `json:"camera_ip,omitempty"`
	ControlPort *int    `json:"control_port,omitempty"` // camera command port
	ListenPort  *int    `json:"listen_port,omitempty"`  // local response port
	RcvBuf      *int    `json:"rcv_buf,omitempty"`
	SerialPort  *string `json:"serial_port,omitempty"`
	BaudRate    *int    `json:"baud_rate,omitempty"`

	// Protocol
	Checksum   *string `json:"checksum,omitempty"`    // "hex" or "byte"
	SourceRole *string `json:"source_role,omitempty"` // role name or code
	Timeout    *string `json:"timeout,omitempty"`     // duration string like "2s"
	RetryCount *int    `json:"retry_count,omitempty"`

	// Telemetry
	SubscriberBuffer *int  `json:"subscriber_buffer,omitempty"`
	AttitudeAutoSend *bool `json:"attitude_auto_send,omitempty"`

	// Storage and admin
	DBPath      *string `json:"db_path,omitempty"`
	AdminListen *string `json:"admin_listen,omitempty"`
	LogLevel    *string `json:"log_level,omitempty"`
}

// LoadGimbalConfig loads a GimbalConfig from a JSON file. The file must have
// a .json extension and be under 1MB.
func LoadGimbalConfig(path string) (*GimbalConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &GimbalConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching from the current
// directory up to the repository root. It panics if the file cannot be
// loaded and is intended for test setup.
func MustLoadDefaultConfig() *GimbalConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadGimbalConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func validPort(name string, p *int) error {
	if p != nil && (*p < 1 || *p > 65535) {
		return fmt.Errorf("%s must be between 1 and 65535, got %d", name, *p)
	}
	return nil
}

// Validate checks the values that are set.
func (c *GimbalConfig) Validate() error {
	if c.Transport != nil && *c.Transport != TransportUDP && *c.Transport != TransportSerial {
		return fmt.Errorf("transport must be %q or %q, got %q", TransportUDP, TransportSerial, *c.Transport)
	}
	if c.CameraIP != nil && net.ParseIP(*c.CameraIP) == nil {
		return fmt.Errorf("invalid camera_ip %q", *c.CameraIP)
	}
	if err := validPort("control_port", c.ControlPort); err != nil {
		return err
	}
	if err := validPort("listen_port", c.ListenPort); err != nil {
		return err
	}
	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}
	if c.Checksum != nil {
		if _, err := frame.ParseChecksumStyle(*c.Checksum); err != nil {
			return err
		}
	}
	if c.SourceRole != nil {
		if _, err := address.Parse(*c.SourceRole); err != nil {
			return fmt.Errorf("invalid source_role: %w", err)
		}
	}
	if c.Timeout != nil && *c.Timeout != "" {
		d, err := time.ParseDuration(*c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout '%s': %w", *c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
	}
	if c.RetryCount != nil && *c.RetryCount < 0 {
		return fmt.Errorf("retry_count must be non-negative, got %d", *c.RetryCount)
	}
	if c.SubscriberBuffer != nil && *c.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be at least 1, got %d", *c.SubscriberBuffer)
	}
	if c.LogLevel != nil {
		if _, err := zerolog.ParseLevel(*c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level %q: %w", *c.LogLevel, err)
		}
	}
	return nil
}

// GetTransport returns the transport kind or "udp".
func (c *GimbalConfig) GetTransport() string {
	if c.Transport == nil || *c.Transport == "" {
		return TransportUDP
	}
	return *c.Transport
}

// GetCameraIP returns the camera_ip value or the default.
func (c *GimbalConfig) GetCameraIP() string {
	if c.CameraIP == nil {
		return "192.168.0.108"
	}
	return *c.CameraIP
}

// GetControlPort returns the control_port value or the default.
func (c *GimbalConfig) GetControlPort() int {
	if c.ControlPort == nil {
		return 9003
	}
	return *c.ControlPort
}

// GetListenPort returns the listen_port value or the default.
func (c *GimbalConfig) GetListenPort() int {
	if c.ListenPort == nil {
		return 9004
	}
	return *c.ListenPort
}

// CameraAddress returns the camera's command address as host:port.
func (c *GimbalConfig) CameraAddress() string {
	return net.JoinHostPort(c.GetCameraIP(), strconv.Itoa(c.GetControlPort()))
}

// ListenAddress returns the local address responses arrive on.
func (c *GimbalConfig) ListenAddress() string {
	return net.JoinHostPort("", strconv.Itoa(c.GetListenPort()))
}

// GetRcvBuf returns the rcv_buf value or the default.
func (c *GimbalConfig) GetRcvBuf() int {
	if c.RcvBuf == nil {
		return 1 << 20
	}
	return *c.RcvBuf
}

// GetSerialPort returns the serial_port value or the default.
func (c *GimbalConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.SerialPort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *GimbalConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}

// GetChecksum returns the configured checksum style. SIP firmware uses hex.
func (c *GimbalConfig) GetChecksum() frame.ChecksumStyle {
	if c.Checksum == nil {
		return frame.ChecksumHex
	}
	s, err := frame.ParseChecksumStyle(*c.Checksum)
	if err != nil {
		return frame.ChecksumHex
	}
	return s
}

// GetSourceRole returns the role requests are sent from.
func (c *GimbalConfig) GetSourceRole() address.Role {
	if c.SourceRole == nil {
		return address.Network
	}
	r, err := address.Parse(*c.SourceRole)
	if err != nil {
		return address.Network
	}
	return r
}

// GetTimeout parses and returns the response timeout.
func (c *GimbalConfig) GetTimeout() time.Duration {
	if c.Timeout == nil || *c.Timeout == "" {
		return 2 * time.Second
	}
	d, err := time.ParseDuration(*c.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// GetRetryCount returns the retry_count value or the default.
func (c *GimbalConfig) GetRetryCount() int {
	if c.RetryCount == nil {
		return 3
	}
	return *c.RetryCount
}

// GetSubscriberBuffer returns the subscriber_buffer value or the default.
func (c *GimbalConfig) GetSubscriberBuffer() int {
	if c.SubscriberBuffer == nil {
		return 64
	}
	return *c.SubscriberBuffer
}

// GetAttitudeAutoSend returns the attitude_auto_send value or the default.
func (c *GimbalConfig) GetAttitudeAutoSend() bool {
	if c.AttitudeAutoSend == nil {
		return false
	}
	return *c.AttitudeAutoSend
}

// GetDBPath returns the db_path value or the default.
func (c *GimbalConfig) GetDBPath() string {
	if c.DBPath == nil {
		return "gimbal.db"
	}
	return *c.DBPath
}

// GetAdminListen returns the admin_listen value or the default.
func (c *GimbalConfig) GetAdminListen() string {
	if c.AdminListen == nil {
		return "localhost:8080"
	}
	return *c.AdminListen
}

// GetLogLevel returns the log_level value or the default.
func (c *GimbalConfig) GetLogLevel() string {
	if c.LogLevel == nil {
		return "info"
	}
	return *c.LogLevel
}
