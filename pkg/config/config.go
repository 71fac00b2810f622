// Package config loads the configuration of the bridge daemon.
//
// Values are taken in order from built-in defaults, a TOML file, BANG_*
// environment variables and command line flags, the later overriding the
// former.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"

	"github.com/robotalks/bang.go/pkg/l0/device"
	"github.com/robotalks/bang.go/pkg/l0/msgs"
	"github.com/robotalks/bang.go/pkg/nav"
)

// Defaults
const (
	DefaultDeviceURI     = "serial:/dev/ttyUSB0"
	DefaultMQTTURL       = "mqtt://localhost:1883/bang/"
	DefaultConfigTimeout = 2 * time.Second

	appID = "bang"
)

// ErrInvalid indicates an inconsistent configuration.
var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration in TOML, written like "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the daemon configuration.
type Config struct {
	Device      DeviceConfig   `toml:"device"`
	MQTT        MQTTConfig     `toml:"mqtt"`
	MetricsAddr string         `toml:"metrics_addr"`
	Odometry    OdometryConfig `toml:"odometry"`
	Motors      []MotorConfig  `toml:"motor"`
	Servos      []ServoConfig  `toml:"servo"`
}

// DeviceConfig locates the device.
type DeviceConfig struct {
	// ID names the device in MQTT topics, derived from the machine id
	// if empty.
	ID  string `toml:"id"`
	URI string `toml:"uri"`
	// ConfigTimeout bounds the ack of each startup message.
	ConfigTimeout Duration `toml:"config_timeout"`
	// Blink flashes the LED at startup.
	Blink bool `toml:"blink"`
}

// MQTTConfig locates the broker, the URL path is the topic prefix.
type MQTTConfig struct {
	URL string `toml:"url"`
}

// OdometryConfig tunes the pose estimation.
type OdometryConfig struct {
	Disabled   bool    `toml:"disabled"`
	BaseRadius float64 `toml:"base_radius"`
	ThetaCoeff float64 `toml:"theta_coeff"`
	XCoeff     float64 `toml:"x_coeff"`
	YCoeff     float64 `toml:"y_coeff"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		Device: DeviceConfig{
			URI:           DefaultDeviceURI,
			ConfigTimeout: Duration{DefaultConfigTimeout},
		},
		MQTT: MQTTConfig{URL: DefaultMQTTURL},
		Odometry: OdometryConfig{
			BaseRadius: nav.DefaultBaseRadius,
			ThetaCoeff: 1,
			XCoeff:     1,
			YCoeff:     1,
		},
	}
}

// LoadFile decodes a TOML file over the defaults.
func LoadFile(path string) (*Config, error) {
	c := New()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: unknown keys %v in %s", ErrInvalid, undecoded, path)
	}
	return c, nil
}

// ApplyEnv overrides values with BANG_DEVICE, BANG_DEVICE_ID and
// BANG_MQTT_URL.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if val := getenv("BANG_DEVICE"); val != "" {
		c.Device.URI = val
	}
	if val := getenv("BANG_DEVICE_ID"); val != "" {
		c.Device.ID = val
	}
	if val := getenv("BANG_MQTT_URL"); val != "" {
		c.MQTT.URL = val
	}
}

// Validate checks the config and fills the derived values.
func (c *Config) Validate() error {
	if c.Device.URI == "" {
		return fmt.Errorf("%w: device uri required", ErrInvalid)
	}
	if c.Device.ID == "" {
		id, err := MachineID()
		if err != nil {
			return err
		}
		c.Device.ID = id
	}
	seen := make(map[uint8]bool)
	for _, m := range c.Motors {
		if int(m.Num) >= device.MaxMotors {
			return fmt.Errorf("%w: motor %d, at most %d motors", ErrInvalid, m.Num, device.MaxMotors)
		}
		if seen[m.Num] {
			return fmt.Errorf("%w: motor %d configured twice", ErrInvalid, m.Num)
		}
		seen[m.Num] = true
	}
	servos := make(map[int16]bool)
	for _, s := range c.Servos {
		if servos[s.Num] {
			return fmt.Errorf("%w: servo %d configured twice", ErrInvalid, s.Num)
		}
		if s.StartPercents > 100 {
			return fmt.Errorf("%w: servo %d start_percents %d", ErrInvalid, s.Num, s.StartPercents)
		}
		servos[s.Num] = true
	}
	return nil
}

// MachineID derives a short stable device id from the machine id.
func MachineID() (string, error) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return "", fmt.Errorf("machine id: %w", err)
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id, nil
}

// NewOdometry creates the pose estimator, nil if disabled or without
// motors.
func (c *Config) NewOdometry() *nav.Odometry {
	if c.Odometry.Disabled || len(c.Motors) == 0 {
		return nil
	}
	var count int
	for _, m := range c.Motors {
		if int(m.Num) >= count {
			count = int(m.Num) + 1
		}
	}
	motors := make([]msgs.ConfigMotor, count)
	for _, m := range c.Motors {
		motors[m.Num] = m.Message()
	}
	o := nav.NewOdometry(motors)
	o.BaseRadius = c.Odometry.BaseRadius
	o.ThetaCoeff, o.XCoeff, o.YCoeff = c.Odometry.ThetaCoeff, c.Odometry.XCoeff, c.Odometry.YCoeff
	return o
}

var (
	configFile string
	overrides  = struct {
		deviceURI, deviceID, mqttURL, metricsAddr string
	}{}
)

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&configFile, "config", "", "TOML config file.")
	flag.StringVar(&overrides.deviceURI, "device", "", "Device URI, e.g. serial:/dev/ttyUSB0?baud=115200.")
	flag.StringVar(&overrides.deviceID, "device-id", "", "Device ID used in MQTT topics.")
	flag.StringVar(&overrides.mqttURL, "mqtt-url", "", "MQTT broker URL, path is the topic prefix.")
	flag.StringVar(&overrides.metricsAddr, "metrics-addr", "", "Address serving /metrics.")
}

// Load loads the config according to the flags and the environment.
func Load() (*Config, error) {
	c := New()
	if configFile != "" {
		var err error
		if c, err = LoadFile(configFile); err != nil {
			return nil, err
		}
	}
	c.ApplyEnv(os.Getenv)
	if overrides.deviceURI != "" {
		c.Device.URI = overrides.deviceURI
	}
	if overrides.deviceID != "" {
		c.Device.ID = overrides.deviceID
	}
	if overrides.mqttURL != "" {
		c.MQTT.URL = overrides.mqttURL
	}
	if overrides.metricsAddr != "" {
		c.MetricsAddr = overrides.metricsAddr
	}
	return c, c.Validate()
}
