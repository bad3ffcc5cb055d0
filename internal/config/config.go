// Package config loads runtime settings for the server and client
// binaries from the environment, with an optional .env file for local
// development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ServerConfig holds everything cmd/server needs to start listening.
type ServerConfig struct {
	Addr             string
	CheckpointDriver string // "sqlite" or "postgres"
	SQLitePath       string
	PostgresDSN      string
	BusDriver        string // "ws" or "redis"
	RedisAddr        string
	MDNSServiceName  string
	MDNSAdvertise    bool
}

// ClientConfig holds everything cmd/client needs to connect.
type ClientConfig struct {
	ServerURL    string
	UserID       string
	UserLevel    int
	CacheDBPath  string
	MDNSDiscover bool
}

// LoadServer reads server settings from the environment, loading .env
// first if present.
func LoadServer() (*ServerConfig, error) {
	loadDotenv()

	cfg := &ServerConfig{
		Addr:             getEnv("CWSE_ADDR", "localhost:8080"),
		CheckpointDriver: getEnv("CWSE_CHECKPOINT_DRIVER", "sqlite"),
		SQLitePath:       getEnv("CWSE_SQLITE_PATH", "cwse.sqlite3"),
		PostgresDSN:      getEnv("CWSE_POSTGRES_DSN", ""),
		BusDriver:        getEnv("CWSE_BUS_DRIVER", "ws"),
		RedisAddr:        getEnv("CWSE_REDIS_ADDR", "localhost:6379"),
		MDNSServiceName:  getEnv("CWSE_MDNS_SERVICE", "_cwse._tcp"),
		MDNSAdvertise:    getEnvAsBool("CWSE_MDNS_ADVERTISE", false),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ServerConfig) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("CWSE_ADDR is required")
	}
	switch c.CheckpointDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("CWSE_CHECKPOINT_DRIVER must be sqlite or postgres, got %q", c.CheckpointDriver)
	}
	if c.CheckpointDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("CWSE_POSTGRES_DSN is required when CWSE_CHECKPOINT_DRIVER=postgres")
	}
	switch c.BusDriver {
	case "ws", "redis":
	default:
		return fmt.Errorf("CWSE_BUS_DRIVER must be ws or redis, got %q", c.BusDriver)
	}
	return nil
}

// LoadClient reads client settings from the environment.
func LoadClient() (*ClientConfig, error) {
	loadDotenv()

	cfg := &ClientConfig{
		ServerURL:    getEnv("CWSE_SERVER_URL", "ws://localhost:8080/ws"),
		UserID:       getEnv("CWSE_USER_ID", ""),
		UserLevel:    getEnvAsInt("CWSE_USER_LEVEL", 0),
		CacheDBPath:  getEnv("CWSE_CACHE_PATH", "cwse-client-cache.bolt"),
		MDNSDiscover: getEnvAsBool("CWSE_MDNS_DISCOVER", false),
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("CWSE_USER_ID is required")
	}
	if cfg.UserLevel != 0 && cfg.UserLevel != 1 {
		return nil, fmt.Errorf("CWSE_USER_LEVEL must be 0 (low) or 1 (high), got %d", cfg.UserLevel)
	}
	return cfg, nil
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("warning: invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}
	return v
}

func getEnvAsBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("warning: invalid bool for %s, using default: %t", key, defaultValue)
		return defaultValue
	}
	return v
}
