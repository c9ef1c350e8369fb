package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	API      APIConfig
	Realtime RealtimeConfig
	Redis    RedisConfig
}

// ServerConfig configures the local diagnostics endpoint.
type ServerConfig struct {
	Address      string
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
	IdleTimeout  time.Duration
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type RealtimeConfig struct {
	URL                  string
	MaxReconnectAttempts int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewConfig() (*Config, error) {
	serverCfg, err := newServerConfig()
	if err != nil {
		return nil, fmt.Errorf("server config error: %w", err)
	}

	apiCfg, err := newAPIConfig()
	if err != nil {
		return nil, fmt.Errorf("api config error: %w", err)
	}

	realtimeCfg, err := newRealtimeConfig()
	if err != nil {
		return nil, fmt.Errorf("realtime config error: %w", err)
	}

	redisCfg, err := newRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("redis config error: %w", err)
	}

	return &Config{
		Server:   serverCfg,
		API:      apiCfg,
		Realtime: realtimeCfg,
		Redis:    redisCfg,
	}, nil
}

func newServerConfig() (ServerConfig, error) {
	writeTimeout, err := getDurationFromEnv("SERVER_WRITE_TIMEOUT", "15s")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("write timeout parse error: %w", err)
	}

	readTimeout, err := getDurationFromEnv("SERVER_READ_TIMEOUT", "15s")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("read timeout parse error: %w", err)
	}

	idleTimeout, err := getDurationFromEnv("SERVER_IDLE_TIMEOUT", "30s")
	if err != nil {
		return ServerConfig{}, fmt.Errorf("idle timeout parse error: %w", err)
	}

	return ServerConfig{
		Address:      getEnvOrDefault("SERVER_ADDRESS", ":5600"),
		WriteTimeout: writeTimeout,
		ReadTimeout:  readTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func newAPIConfig() (APIConfig, error) {
	requestTimeout, err := getDurationFromEnv("API_REQUEST_TIMEOUT", "15s")
	if err != nil {
		return APIConfig{}, fmt.Errorf("request timeout parse error: %w", err)
	}

	return APIConfig{
		BaseURL:        getEnvOrDefault("ATLAS_API_URL", "https://api.atlasprotect.com/v1"),
		RequestTimeout: requestTimeout,
	}, nil
}

func newRealtimeConfig() (RealtimeConfig, error) {
	maxAttempts, err := strconv.Atoi(getEnvOrDefault("REALTIME_MAX_RECONNECT_ATTEMPTS", "8"))
	if err != nil {
		return RealtimeConfig{}, fmt.Errorf("max reconnect attempts parse error: %w", err)
	}

	return RealtimeConfig{
		URL:                  getEnvOrDefault("ATLAS_REALTIME_URL", "wss://api.atlasprotect.com/v1/notifications"),
		MaxReconnectAttempts: maxAttempts,
	}, nil
}

func newRedisConfig() (RedisConfig, error) {
	db, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return RedisConfig{}, fmt.Errorf("redis db parse error: %w", err)
	}

	return RedisConfig{
		Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       db,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationFromEnv(key, defaultValue string) (time.Duration, error) {
	return time.ParseDuration(getEnvOrDefault(key, defaultValue))
}
