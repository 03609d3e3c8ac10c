package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. HRAPPROVALS_DATABASE_DRIVER.
const EnvPrefix = "HRAPPROVALS"

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Viper exposes the underlying instance so CLI flags can be bound to keys.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// ConfigFileUsed returns the path of the file that was read, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Load loads configuration with precedence:
// defaults < config file < env vars < bound CLI flags
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setupViper(cfg)

	if err := l.loadConfigFile(); err != nil {
		return nil, err
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Load is a shortcut for NewLoader().Load().
func Load() (*Config, error) {
	return NewLoader().Load()
}

func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hr-approvals")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	l.setDefaults(cfg)
	v.AutomaticEnv()
}

// setDefaults registers every leaf key so AutomaticEnv can resolve it during Unmarshal.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.version", cfg.Service.Version)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("server.http_port", cfg.Server.HTTPPort)
	v.SetDefault("server.grpc_port", cfg.Server.GRPCPort)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", cfg.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.request_timeout", cfg.Server.RequestTimeout)

	v.SetDefault("database.driver", cfg.Database.Driver)
	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.database", cfg.Database.Database)
	v.SetDefault("database.ssl_mode", cfg.Database.SSLMode)
	v.SetDefault("database.max_conns", cfg.Database.MaxConns)
	v.SetDefault("database.min_conns", cfg.Database.MinConns)
	v.SetDefault("database.max_conn_time", cfg.Database.MaxConnTime)
	v.SetDefault("database.max_idle_time", cfg.Database.MaxIdleTime)
	v.SetDefault("database.health_check", cfg.Database.HealthCheck)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("escalation.sweep_interval", cfg.Escalation.SweepInterval)
	v.SetDefault("escalation.default_sla", cfg.Escalation.DefaultSLA)

	v.SetDefault("nats.url", cfg.NATS.URL)
	v.SetDefault("nats.name", cfg.NATS.Name)
	v.SetDefault("nats.reconnect_wait", cfg.NATS.ReconnectWait)
	v.SetDefault("nats.max_reconnects", cfg.NATS.MaxReconnects)
	v.SetDefault("nats.subject_prefix", cfg.NATS.SubjectPrefix)
}

// loadConfigFile reads the config file. A missing file is only an error when
// one was set explicitly.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && l.configFile == "" {
			return nil
		}
		return fmt.Errorf("failed to load config file: %w", err)
	}
	return nil
}
