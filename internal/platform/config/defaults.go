package config

import "time"

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8080,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "data/logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "./web",
		},
		Transport: TransportConfig{
			WebSocket: WebSocketConfig{
				Enabled: true,
				IP:      "0.0.0.0",
				Port:    8000,
				Path:    "/ws",
			},
		},
		Security: SecurityConfig{
			Enabled:       true,
			MaxAttempts:   5,
			FailureWindow: 15 * time.Minute,
			LockDuration:  30 * time.Minute,
			SessionTTL:    24 * time.Hour,
		},
		Token: TokenConfig{
			Secret: "",
			TTL:    24 * time.Hour,
		},
		Store: StoreConfig{
			Driver: "memory",
			Memory: MemoryStoreConfig{
				GCInterval: 5 * time.Minute,
			},
			Redis: RedisStoreConfig{
				Addr:   "",
				Prefix: "login:",
			},
		},
		Database: DatabaseConfig{
			DSN: "data/fivebear.db",
		},
	}
}
