package config

import (
	"time"
)

type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Web       WebConfig       `yaml:"web" mapstructure:"web"`
	Transport TransportConfig `yaml:"transport" mapstructure:"transport"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Token     TokenConfig     `yaml:"token" mapstructure:"token"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Database  DatabaseConfig  `yaml:"database" mapstructure:"database"`
}

type ServerConfig struct {
	IP   string `yaml:"ip" mapstructure:"ip"`
	Port int    `yaml:"port" mapstructure:"port"`
}

// SecurityConfig tunes the login throttle and single-session enforcement.
type SecurityConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	FailureWindow time.Duration `yaml:"failure_window" mapstructure:"failure_window"`
	LockDuration  time.Duration `yaml:"lock_duration" mapstructure:"lock_duration"`
	SessionTTL    time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
}

// TokenConfig configures the signed identity token codec.
type TokenConfig struct {
	Secret string        `yaml:"secret" mapstructure:"secret"`
	TTL    time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// StoreConfig selects the expiring key-value backend shared by the
// throttle and the session registry.
type StoreConfig struct {
	Driver string            `yaml:"driver" mapstructure:"driver"`
	Redis  RedisStoreConfig  `yaml:"redis,omitempty" mapstructure:"redis"`
	Memory MemoryStoreConfig `yaml:"memory,omitempty" mapstructure:"memory"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

type MemoryStoreConfig struct {
	GCInterval time.Duration `yaml:"gc_interval" mapstructure:"gc_interval"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn" mapstructure:"dsn"`
}

type LogConfig struct {
	Level string `yaml:"log_level" mapstructure:"log_level"`
	Dir   string `yaml:"log_dir" mapstructure:"log_dir"`
	File  string `yaml:"log_file" mapstructure:"log_file"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
}

// TransportConfig groups the push transport settings.
type TransportConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
}

type WebSocketConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	IP      string `yaml:"ip" mapstructure:"ip"`
	Port    int    `yaml:"port" mapstructure:"port"`
	Path    string `yaml:"path" mapstructure:"path"`
}
