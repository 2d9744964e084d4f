package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTesting     Environment = "testing"
)

func (e Environment) IsValid() bool {
	switch e {
	case EnvDevelopment, EnvProduction, EnvTesting:
		return true
	}
	return false
}

type SessionBackend string

const (
	SessionBackendCookie SessionBackend = "cookie"
	SessionBackendRedis  SessionBackend = "redis"
)

func (b SessionBackend) IsValid() bool {
	switch b {
	case SessionBackendCookie, SessionBackendRedis:
		return true
	}
	return false
}

type Config struct {
	Server    Server
	Moodle    Moodle
	Proxy     Proxy
	Session   Session
	Cache     Cache
	Feed      Feed
	RateLimit RateLimit
	DataDir   string
}

type Server struct {
	Port           int
	Environment    Environment
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	// TrustProxy makes client IP detection honour X-Forwarded-For and friends.
	TrustProxy bool
}

func (s Server) IsProduction() bool {
	return s.Environment == EnvProduction
}

type Moodle struct {
	BaseURL        string
	Service        string
	RequestTimeout time.Duration
	EventLimit     int
	// Lookback moves timesortfrom into the past so recently overdue events are listed.
	Lookback time.Duration
}

type Proxy struct {
	Enabled bool
	Prefix  string
}

type Session struct {
	Backend    SessionBackend
	CookieName string
	TTL        time.Duration
}

type Cache struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int
}

// Feed controls how the assignments view reports fetch failures.
type Feed struct {
	ShowErrors bool
}

type RateLimit struct {
	Enabled       bool
	LoginRequests int
	ProxyRequests int
	Window        time.Duration
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var config Config
	var err error

	// Server configuration
	config.Server.Port, err = getEnvIntSafe("SERVER_PORT", 8080, false)
	if err != nil {
		return config, fmt.Errorf("server port config error: %w", err)
	}

	config.Server.Environment, err = getEnvEnvironmentSafe("SERVER_ENVIRONMENT", EnvDevelopment, false)
	if err != nil {
		return config, fmt.Errorf("server environment config error: %w", err)
	}

	config.Server.WriteTimeout, err = getEnvDurationSafe("SERVER_WRITE_TIMEOUT", 15*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("server write timeout config error: %w", err)
	}

	config.Server.ReadTimeout, err = getEnvDurationSafe("SERVER_READ_TIMEOUT", 15*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("server read timeout config error: %w", err)
	}

	config.Server.IdleTimeout, err = getEnvDurationSafe("SERVER_IDLE_TIMEOUT", 60*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("server idle timeout config error: %w", err)
	}

	config.Server.MaxHeaderBytes, err = getEnvIntSafe("SERVER_MAX_HEADER_BYTES", 1<<20, false)
	if err != nil {
		return config, fmt.Errorf("server max header bytes config error: %w", err)
	}

	config.Server.TrustProxy, err = getEnvBoolSafe("SERVER_TRUST_PROXY", false, false)
	if err != nil {
		return config, fmt.Errorf("server trust proxy config error: %w", err)
	}

	// Moodle configuration
	config.Moodle.BaseURL, err = getEnvStringSafe("MOODLE_BASE_URL", "http://lms.kiet.edu/moodle", false)
	if err != nil {
		return config, fmt.Errorf("moodle base URL config error: %w", err)
	}
	if _, err := url.ParseRequestURI(config.Moodle.BaseURL); err != nil {
		return config, fmt.Errorf("moodle base URL config error: %w", err)
	}

	config.Moodle.Service, err = getEnvStringSafe("MOODLE_SERVICE", "moodle_mobile_app", false)
	if err != nil {
		return config, fmt.Errorf("moodle service config error: %w", err)
	}

	config.Moodle.RequestTimeout, err = getEnvDurationSafe("MOODLE_REQUEST_TIMEOUT", 10*time.Second, false)
	if err != nil {
		return config, fmt.Errorf("moodle request timeout config error: %w", err)
	}
	if config.Moodle.RequestTimeout <= 0 {
		return config, fmt.Errorf("moodle request timeout config error: must be positive, got %s", config.Moodle.RequestTimeout)
	}

	config.Moodle.EventLimit, err = getEnvIntSafe("MOODLE_EVENT_LIMIT", 20, false)
	if err != nil {
		return config, fmt.Errorf("moodle event limit config error: %w", err)
	}
	if config.Moodle.EventLimit <= 0 {
		return config, fmt.Errorf("moodle event limit config error: must be positive, got %d", config.Moodle.EventLimit)
	}

	config.Moodle.Lookback, err = getEnvDurationSafe("MOODLE_LOOKBACK", 0, false)
	if err != nil {
		return config, fmt.Errorf("moodle lookback config error: %w", err)
	}

	// Proxy configuration
	config.Proxy.Enabled, err = getEnvBoolSafe("PROXY_ENABLED", true, false)
	if err != nil {
		return config, fmt.Errorf("proxy enabled config error: %w", err)
	}

	config.Proxy.Prefix, err = getEnvStringSafe("PROXY_PREFIX", "/moodle-api", false)
	if err != nil {
		return config, fmt.Errorf("proxy prefix config error: %w", err)
	}
	if !strings.HasPrefix(config.Proxy.Prefix, "/") || config.Proxy.Prefix == "/" {
		return config, fmt.Errorf("proxy prefix config error: %q must start with / and not be the root", config.Proxy.Prefix)
	}
	config.Proxy.Prefix = strings.TrimSuffix(config.Proxy.Prefix, "/")

	// Session configuration
	config.Session.Backend, err = getEnvSessionBackendSafe("SESSION_BACKEND", SessionBackendCookie, false)
	if err != nil {
		return config, fmt.Errorf("session backend config error: %w", err)
	}

	config.Session.CookieName, err = getEnvStringSafe("SESSION_COOKIE_NAME", "moodle_token", false)
	if err != nil {
		return config, fmt.Errorf("session cookie name config error: %w", err)
	}

	config.Session.TTL, err = getEnvDurationSafe("SESSION_TTL", 90*24*time.Hour, false)
	if err != nil {
		return config, fmt.Errorf("session TTL config error: %w", err)
	}
	if config.Session.TTL <= 0 {
		return config, fmt.Errorf("session TTL config error: must be positive, got %s", config.Session.TTL)
	}

	// Cache configuration
	config.Cache.RedisAddr, err = getEnvStringSafe("REDIS_ADDR", "localhost:6379", false)
	if err != nil {
		return config, fmt.Errorf("Redis address config error: %w", err)
	}

	config.Cache.RedisPassword, err = getEnvStringSafe("REDIS_PASSWORD", "", false)
	if err != nil {
		return config, fmt.Errorf("Redis password config error: %w", err)
	}

	config.Cache.RedisDB, err = getEnvIntSafe("REDIS_DB", 0, false)
	if err != nil {
		return config, fmt.Errorf("Redis DB config error: %w", err)
	}

	config.Cache.RedisPoolSize, err = getEnvIntSafe("REDIS_POOL_SIZE", 10, false)
	if err != nil {
		return config, fmt.Errorf("Redis pool size config error: %w", err)
	}

	// Feed configuration
	config.Feed.ShowErrors, err = getEnvBoolSafe("FEED_SHOW_ERRORS", false, false)
	if err != nil {
		return config, fmt.Errorf("feed show errors config error: %w", err)
	}

	// Rate limit configuration
	config.RateLimit.Enabled, err = getEnvBoolSafe("RATE_LIMIT_ENABLED", true, false)
	if err != nil {
		return config, fmt.Errorf("rate limit enabled config error: %w", err)
	}

	config.RateLimit.LoginRequests, err = getEnvIntSafe("RATE_LIMIT_LOGIN_REQUESTS", 10, false)
	if err != nil {
		return config, fmt.Errorf("rate limit login requests config error: %w", err)
	}
	if config.RateLimit.LoginRequests <= 0 {
		return config, fmt.Errorf("rate limit login requests config error: must be positive, got %d", config.RateLimit.LoginRequests)
	}

	config.RateLimit.ProxyRequests, err = getEnvIntSafe("RATE_LIMIT_PROXY_REQUESTS", 120, false)
	if err != nil {
		return config, fmt.Errorf("rate limit proxy requests config error: %w", err)
	}
	if config.RateLimit.ProxyRequests <= 0 {
		return config, fmt.Errorf("rate limit proxy requests config error: must be positive, got %d", config.RateLimit.ProxyRequests)
	}

	config.RateLimit.Window, err = getEnvDurationSafe("RATE_LIMIT_WINDOW", time.Minute, false)
	if err != nil {
		return config, fmt.Errorf("rate limit window config error: %w", err)
	}
	if config.RateLimit.Window <= 0 {
		return config, fmt.Errorf("rate limit window config error: must be positive, got %s", config.RateLimit.Window)
	}

	// Data directory, empty means a temporary directory is created at startup
	config.DataDir, err = getEnvStringSafe("DATA_DIR", "", false)
	if err != nil {
		return config, fmt.Errorf("data dir config error: %w", err)
	}

	return config, nil
}

func getEnvStringSafe(key, defaultValue string, required bool) (string, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return "", fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	return value, nil
}

func getEnvIntSafe(key string, defaultValue int, required bool) (int, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return 0, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	return value, nil
}

func getEnvDurationSafe(key string, defaultValue time.Duration, required bool) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return 0, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s must be a valid duration: %w", key, err)
	}
	return value, nil
}

func getEnvBoolSafe(key string, defaultValue bool, required bool) (bool, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return false, fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("environment variable %s must be a valid boolean: %w", key, err)
	}
	return value, nil
}

func getEnvEnvironmentSafe(key string, defaultValue Environment, required bool) (Environment, error) {
	env, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return "", fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	envValue := Environment(env)
	if !envValue.IsValid() {
		return "", fmt.Errorf("environment variable %s has invalid value: %s", key, env)
	}
	return envValue, nil
}

func getEnvSessionBackendSafe(key string, defaultValue SessionBackend, required bool) (SessionBackend, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		if required {
			return "", fmt.Errorf("environment variable %s is required", key)
		}
		return defaultValue, nil
	}
	backend := SessionBackend(value)
	if !backend.IsValid() {
		return "", fmt.Errorf("environment variable %s has invalid value: %s", key, value)
	}
	return backend, nil
}
