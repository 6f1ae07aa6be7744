// Package coatyconfig loads the container configuration described in
// spec §6: YAML with environment-variable expansion, defaulting, and
// validation, mapped onto the option keys a Container and its
// controllers consume.
package coatyconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coaty-io/coaty-go/comm"
)

// Config holds the full set of recognized container configuration
// keys (spec §6's "Container configuration" table).
type Config struct {
	Common        CommonConfig             `yaml:"common"`
	Communication CommunicationConfig      `yaml:"communication"`
	Controllers   map[string]ControllerOptions `yaml:"controllers"`
	Databases     map[string]DatabaseOptions   `yaml:"databases"`
	LogLevel      string                   `yaml:"log_level"`
}

// CommonConfig carries metadata shared across controllers:
// common.agentInfo and common.associatedUser.
type CommonConfig struct {
	AgentInfo       AgentInfo      `yaml:"agentInfo"`
	AssociatedUser  map[string]any `yaml:"associatedUser"`
}

// AgentInfo is package/build/host metadata attached to Log events.
type AgentInfo struct {
	PackageName    string `yaml:"packageName"`
	PackageVersion string `yaml:"packageVersion"`
	BuildDate      string `yaml:"buildDate"`
	Hostname       string `yaml:"hostname"`
}

// CommunicationConfig maps the communication.* keys onto comm.Options.
type CommunicationConfig struct {
	Namespace         string        `yaml:"namespace"`
	UseReadableTopics bool          `yaml:"useReadableTopics"`
	ShouldAutoStart   bool          `yaml:"shouldAutoStart"`
	BrokerOptions     BrokerOptions `yaml:"brokerOptions"`
}

// BrokerOptions is communication.brokerOptions: TCP/WS host, port, TLS
// material, and keep-alive.
type BrokerOptions struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Secure         bool   `yaml:"secure"`
	UseWebSocket   bool   `yaml:"useWebSocket"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	ClientIDPrefix string `yaml:"clientIdPrefix"`
	KeepAliveSec   int    `yaml:"keepAlive"`
}

// ControllerOptions is the free-form per-controller option bag
// (controllers.<Name>.<opt> — database, rules, externalDevices,
// ioContext, and any application-defined key).
type ControllerOptions map[string]any

// DatabaseOptions is one databases.<key> entry: connection info
// consumed by storage adapters.
type DatabaseOptions struct {
	Adapter          string `yaml:"adapter"` // "memory" or "sqlite"
	ConnectionString string `yaml:"connectionString"`
}

// DefaultSearchPaths returns the config file search order: the
// current directory, the user's config directory, then the system
// config directory.
func DefaultSearchPaths() []string {
	paths := []string{"coaty.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "coaty", "coaty.yaml"))
	}
	paths = append(paths, "/etc/coaty/coaty.yaml")
	return paths
}

// FindConfig locates a config file: explicit if given and it exists,
// otherwise the first of DefaultSearchPaths that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("coatyconfig: config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("coatyconfig: no config file found (searched: %v)", DefaultSearchPaths())
}

// Load reads a YAML config from path, expands environment variables,
// applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("coatyconfig: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("coatyconfig: validate %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a container configuration for local development
// against a broker on localhost:1883, with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Communication.Namespace == "" {
		c.Communication.Namespace = "-"
	}
	if c.Communication.BrokerOptions.Host == "" {
		c.Communication.BrokerOptions.Host = "localhost"
	}
	if c.Communication.BrokerOptions.Port == 0 {
		if c.Communication.BrokerOptions.UseWebSocket {
			c.Communication.BrokerOptions.Port = 9883
		} else {
			c.Communication.BrokerOptions.Port = 1883
		}
	}
	if c.Communication.BrokerOptions.ClientIDPrefix == "" {
		c.Communication.BrokerOptions.ClientIDPrefix = "coaty"
	}
	if c.Communication.BrokerOptions.KeepAliveSec == 0 {
		c.Communication.BrokerOptions.KeepAliveSec = 30
	}
	if c.Controllers == nil {
		c.Controllers = make(map[string]ControllerOptions)
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseOptions)
	}
}

// Validate checks the configuration is internally consistent. It runs
// after applyDefaults, so every referenced field is populated.
func (c *Config) Validate() error {
	if p := c.Communication.BrokerOptions.Port; p < 1 || p > 65535 {
		return fmt.Errorf("communication.brokerOptions.port %d out of range (1-65535)", p)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	for key, db := range c.Databases {
		if db.Adapter != "memory" && db.Adapter != "sqlite" {
			return fmt.Errorf("databases.%s.adapter %q unrecognized (want memory or sqlite)", key, db.Adapter)
		}
		if db.Adapter == "sqlite" && db.ConnectionString == "" {
			return fmt.Errorf("databases.%s.connectionString is required for the sqlite adapter", key)
		}
	}
	return nil
}

// CommOptions converts the communication.* section into comm.Options,
// the shape the Communication Manager constructor consumes.
func (c *Config) CommOptions() comm.Options {
	b := c.Communication.BrokerOptions
	scheme := "mqtt"
	if b.UseWebSocket {
		scheme = "ws"
	}
	if b.Secure {
		scheme += "s"
	}
	return comm.Options{
		BrokerURL:      fmt.Sprintf("%s://%s:%d", scheme, b.Host, b.Port),
		Namespace:      c.Communication.Namespace,
		Username:       b.Username,
		Password:       b.Password,
		ClientIDPrefix: b.ClientIDPrefix,
		KeepAliveSec:   uint16(b.KeepAliveSec),
		ReadableTopics: c.Communication.UseReadableTopics,
	}
}
