// Package config handles approvals service configuration loading and validation.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	NATS       NATSConfig       `mapstructure:"nats"`

	// Capabilities maps a designation to the extra capabilities it grants,
	// e.g. "hr-head": ["hr", "manager"].
	Capabilities map[string][]string `mapstructure:"capabilities"`
}

// ServiceConfig identifies the running service.
type ServiceConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig contains HTTP and gRPC listener settings.
type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver      string        `mapstructure:"driver"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	User        string        `mapstructure:"user"`
	Password    string        `mapstructure:"password"`
	Database    string        `mapstructure:"database"`
	SSLMode     string        `mapstructure:"ssl_mode"`
	MaxConns    int32         `mapstructure:"max_conns"`
	MinConns    int32         `mapstructure:"min_conns"`
	MaxConnTime time.Duration `mapstructure:"max_conn_time"`
	MaxIdleTime time.Duration `mapstructure:"max_idle_time"`
	HealthCheck time.Duration `mapstructure:"health_check"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// EscalationConfig drives the overdue sweep.
type EscalationConfig struct {
	// SweepInterval is how often pending requests are checked. Zero disables
	// the background loop; sweeps can still be triggered on demand.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`

	// DefaultSLA applies to levels whose matrix and category set no budget.
	DefaultSLA time.Duration `mapstructure:"default_sla"`
}

// NATSConfig configures the notification publisher. An empty URL disables it.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "be-hr-approvals",
			Version:     "dev",
			Environment: "development",
		},
		Server: ServerConfig{
			HTTPPort:        8086,
			GRPCPort:        9086,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:      "memory",
			Host:        "localhost",
			Port:        5432,
			User:        "postgres",
			Database:    "hr_approvals",
			SSLMode:     "disable",
			MaxConns:    10,
			MinConns:    1,
			MaxConnTime: time.Hour,
			MaxIdleTime: 30 * time.Minute,
			HealthCheck: time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Escalation: EscalationConfig{
			SweepInterval: 5 * time.Minute,
			DefaultSLA:    72 * time.Hour,
		},
		NATS: NATSConfig{
			Name:          "be-hr-approvals",
			ReconnectWait: 2 * time.Second,
			MaxReconnects: 60,
			SubjectPrefix: "notifications.hr",
		},
		Capabilities: map[string][]string{},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535")
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port must be between 1 and 65535")
	}
	if c.Server.HTTPPort == c.Server.GRPCPort {
		return fmt.Errorf("server.http_port and server.grpc_port must differ")
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database.host and database.database are required for postgres")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			return fmt.Errorf("database.max_conns must be >= database.min_conns")
		}
	default:
		return fmt.Errorf("database.driver must be memory or postgres, got %q", c.Database.Driver)
	}

	if c.Escalation.SweepInterval < 0 {
		return fmt.Errorf("escalation.sweep_interval must not be negative")
	}
	if c.Escalation.DefaultSLA <= 0 {
		return fmt.Errorf("escalation.default_sla must be positive")
	}

	for designation, caps := range c.Capabilities {
		if strings.TrimSpace(designation) == "" {
			return fmt.Errorf("capabilities: designation must not be blank")
		}
		for _, capability := range caps {
			if strings.TrimSpace(capability) == "" {
				return fmt.Errorf("capabilities.%s: capability must not be blank", designation)
			}
		}
	}
	return nil
}

// DSN builds a Postgres connection string from the database settings.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
