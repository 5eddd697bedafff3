package robot

import (
	"encoding/json"
	"net"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

const (
	DefaultConfigFile = "naohello.json"
	DefaultPort       = 9559
	DefaultStiffness  = 1.0
)

// Config holds the connection settings for a robot.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// Stiffness applied to the whole body on connect. The robot will not
	// move while it is zero.
	Stiffness float64 `json:"stiffness"`
	User      string  `json:"user,omitempty"`
	Token     string  `json:"token,omitempty"`
}

// DefaultConfig returns settings with the default port and full stiffness.
func DefaultConfig() Config {
	return Config{
		Port:      DefaultPort,
		Stiffness: DefaultStiffness,
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks that the settings can be used to connect.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is not set")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.Stiffness < 0 || c.Stiffness > 1 {
		return errors.Errorf("stiffness %.2f out of range [0, 1]", c.Stiffness)
	}
	return nil
}

// LoadConfig loads configuration from the default config file
func LoadConfig() (Config, error) {
	return LoadConfigFrom(DefaultConfigFile)
}

// LoadConfigFrom loads configuration from a specific file. Fields missing
// from the file keep their defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, nil
}

// Save saves configuration to the default config file
func (c Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file
func (c Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ConfigExists returns true if the config file at path exists
func ConfigExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
