// Package config loads the server's typed, read-only configuration view.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Server holds the server.* keys from spec.md §6.
type Server struct {
	Host            string
	Port            uint16
	NumSubReactors  int
	UseSendfile     bool
	UseThreadPool   bool
	ThreadPoolSize  int
	ThreadPoolQueue int
	TimeoutMS       int
	MaxConnections  int
}

// DB holds the db.* keys consumed by internal/db.
type DB struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Log holds the log.* keys consumed by internal/logging.
type Log struct {
	Level string
	Path  string
}

// Config is the typed, read-only view handed to every collaborator.
// Nothing downstream of Load holds a *viper.Viper.
type Config struct {
	Server   Server
	DB       DB
	Log      Log
	DocRoot  string
}

// Load reads path (if non-empty) plus environment overrides
// (SERVER_*, DB_*, LOG_* with "_" standing in for "."), applies defaults,
// and validates. A validation failure is fatal at startup per spec.md §7.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("webserver")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/webserver")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.num_sub_reactor", 4)
	v.SetDefault("server.use_sendfile", true)
	v.SetDefault("server.use_thread_pool", false)
	v.SetDefault("server.thread_pool_size", 8)
	v.SetDefault("server.thread_pool_queue", 4096)
	v.SetDefault("server.timeout_ms", 15000)
	v.SetDefault("server.max_connections", 65536)
	v.SetDefault("db.max_open_conns", 16)
	v.SetDefault("db.max_idle_conns", 8)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.path", "")
	v.SetDefault("doc_root", "./www")

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	lifetime, err := time.ParseDuration(v.GetString("db.conn_max_lifetime"))
	if err != nil {
		return nil, fmt.Errorf("config: db.conn_max_lifetime: %w", err)
	}

	cfg := &Config{
		Server: Server{
			Host:           v.GetString("server.host"),
			Port:           uint16(v.GetUint32("server.port")),
			NumSubReactors: v.GetInt("server.num_sub_reactor"),
			UseSendfile:    v.GetBool("server.use_sendfile"),
			UseThreadPool:  v.GetBool("server.use_thread_pool"),
			ThreadPoolSize: v.GetInt("server.thread_pool_size"),
			ThreadPoolQueue: v.GetInt("server.thread_pool_queue"),
			TimeoutMS:      v.GetInt("server.timeout_ms"),
			MaxConnections: v.GetInt("server.max_connections"),
		},
		DB: DB{
			DSN:             v.GetString("db.dsn"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: lifetime,
		},
		Log: Log{
			Level: v.GetString("log.level"),
			Path:  v.GetString("log.path"),
		},
		DocRoot: v.GetString("doc_root"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.NumSubReactors <= 0 {
		return fmt.Errorf("config: server.num_sub_reactor must be > 0, got %d", c.Server.NumSubReactors)
	}
	if c.Server.Port == 0 {
		return fmt.Errorf("config: server.port must be non-zero")
	}
	if c.Server.TimeoutMS <= 0 {
		return fmt.Errorf("config: server.timeout_ms must be > 0, got %d", c.Server.TimeoutMS)
	}
	if c.Server.MaxConnections <= 0 {
		return fmt.Errorf("config: server.max_connections must be > 0, got %d", c.Server.MaxConnections)
	}
	if c.DocRoot == "" {
		return fmt.Errorf("config: doc_root must be set")
	}
	return nil
}
