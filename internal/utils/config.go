package utils

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/benmeehan/signal-agent/internal/constants"
	"github.com/benmeehan/signal-agent/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Server struct {
		URL              string        `yaml:"url"`               // Websocket endpoint, ws:// or wss://
		TokenParam       string        `yaml:"token_param"`       // Query parameter carrying the token
		HandshakeTimeout time.Duration `yaml:"handshake_timeout"` // Timeout for the websocket handshake
		WriteTimeout     time.Duration `yaml:"write_timeout"`     // Deadline for a single frame write
		HandoffGrace     time.Duration `yaml:"handoff_grace"`     // Wait for a close confirmation before dropping a channel
	} `yaml:"server"`

	Auth struct {
		Enabled       bool          `yaml:"enabled"`        // Without auth the channel is opened once with no token
		LoginURL      string        `yaml:"login_url"`      // HTTP login endpoint
		Username      string        `yaml:"username"`       // Login user
		Password      string        `yaml:"password"`       // Login password
		Timeout       time.Duration `yaml:"timeout"`        // Timeout per login request
		MaxRetries    int           `yaml:"max_retries"`    // Retries before reporting an authentication failure
		BaseDelay     time.Duration `yaml:"base_delay"`     // Initial delay between retries
		MaxDelay      time.Duration `yaml:"max_delay"`      // Upper bound of the retry delay
		RefreshMargin time.Duration `yaml:"refresh_margin"` // Log in again this long before the token expires
	} `yaml:"auth"`

	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`

	Status struct {
		Enabled     bool   `yaml:"enabled"`      // Enable/disable the status HTTP server
		Address     string `yaml:"address"`      // Listen address
		HostMetrics bool   `yaml:"host_metrics"` // Export CPU, memory and disk usage on /metrics
		DiskPath    string `yaml:"disk_path"`    // Filesystem reported by the disk metric
	} `yaml:"status"`

	Bridge struct {
		Enabled        bool          `yaml:"enabled"`         // Enable/disable publishing store events to MQTT
		Broker         string        `yaml:"broker"`          // MQTT broker address
		ClientID       string        `yaml:"client_id"`       // MQTT client ID, a random suffix is added
		Username       string        `yaml:"username"`        // MQTT username
		Password       string        `yaml:"password"`        // MQTT password
		CACertificate  string        `yaml:"ca_certificate"`  // Path to the CA certificate, enables TLS
		Topic          string        `yaml:"topic"`           // Topic prefix
		QOS            int           `yaml:"qos"`             // MQTT QoS level
		Workers        int           `yaml:"workers"`         // Publishing workers
		PublishTimeout time.Duration `yaml:"publish_timeout"` // Wait for the broker acknowledgement
	} `yaml:"bridge"`
}

// LoadConfig loads the YAML configuration from the specified file, fills
// defaults and validates it.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}
	return &config, nil
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	var config Config
	config.Server.URL = "ws://localhost:8080/ws"
	config.Auth.LoginURL = "http://localhost:8080/login"
	config.ApplyDefaults()
	return &config
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Server.TokenParam, constants.DefaultTokenParam)
	setDefault(&c.Server.HandshakeTimeout, constants.DefaultHandshakeTimeout)
	setDefault(&c.Server.WriteTimeout, constants.DefaultWriteTimeout)
	setDefault(&c.Server.HandoffGrace, constants.DefaultHandoffGrace)

	setDefault(&c.Auth.Timeout, constants.DefaultLoginTimeout)
	setDefault(&c.Auth.MaxRetries, constants.DefaultLoginRetries)
	setDefault(&c.Auth.BaseDelay, constants.DefaultBaseDelay)
	setDefault(&c.Auth.MaxDelay, constants.DefaultMaxDelay)
	setDefault(&c.Auth.RefreshMargin, constants.DefaultRefreshMargin)

	setDefault(&c.Logging.Level, "info")
	setDefault(&c.Logging.Format, "json")

	setDefault(&c.Status.Address, ":9090")
	setDefault(&c.Status.DiskPath, "/")

	setDefault(&c.Bridge.ClientID, "signal-agent")
	setDefault(&c.Bridge.Topic, "signals")
	setDefault(&c.Bridge.Workers, 4)
	setDefault(&c.Bridge.PublishTimeout, 5*time.Second)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	} else if u, err := url.Parse(c.Server.URL); err != nil {
		errs = append(errs, fmt.Errorf("server.url: %w", err))
	} else if u.Scheme != "ws" && u.Scheme != "wss" {
		errs = append(errs, fmt.Errorf("server.url: unsupported scheme %q", u.Scheme))
	}

	if c.Auth.Enabled {
		if c.Auth.LoginURL == "" {
			errs = append(errs, errors.New("auth.login_url is required when auth is enabled"))
		}
		if c.Auth.MaxRetries < 0 {
			errs = append(errs, errors.New("auth.max_retries must not be negative"))
		}
		if c.Auth.MaxDelay < c.Auth.BaseDelay {
			errs = append(errs, errors.New("auth.max_delay must not be below auth.base_delay"))
		}
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format))
	}

	if c.Bridge.Enabled {
		if c.Bridge.Broker == "" {
			errs = append(errs, errors.New("bridge.broker is required when the bridge is enabled"))
		}
		if c.Bridge.QOS < 0 || c.Bridge.QOS > 2 {
			errs = append(errs, fmt.Errorf("bridge.qos: %d is not a valid QoS level", c.Bridge.QOS))
		}
	}

	return errors.Join(errs...)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
