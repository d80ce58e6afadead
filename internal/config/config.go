package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/api"
	"github.com/Bboy9090/Super-Bobbys-World-of-Secret-Rooms-sub005/pkg/util"
)

type (
	// Config holds configuration settings for the device workshop service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		LogLevel string

		// Workflows
		ManifestPath string

		// Device Locks
		Lock LockConfig

		// Providers
		Providers ProviderConfig

		// Engine
		EventBufferSize int
		ShutdownTimeout time.Duration
		TracingEnabled  bool

		// Audit
		AuditBucketURL string
		AuditPrefix    string

		// Progress
		WebSocketQueueSize int
		MQTT               MQTTConfig
	}

	// LockConfig selects and configures the device lock backend
	LockConfig struct {
		Backend string
		Timeout int64
		Redis   RedisConfig
	}

	// RedisConfig holds connection settings for the Redis lock backend
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	// ProviderConfig configures the device tool adapters
	ProviderConfig struct {
		Timeout        int64
		ADBPath        string
		FastbootPath   string
		IOSToolDir     string
		RemoteAgentURL string
	}

	// MQTTConfig configures the optional MQTT progress publisher
	MQTTConfig struct {
		BrokerURL   string
		ClientID    string
		TopicPrefix string
	}
)

const (
	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"
)

const (
	DefaultAPIPort         = 8080
	DefaultAPIHost         = "0.0.0.0"
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
	MaxTCPPort             = 65535

	DefaultLockTimeout     = 5 * api.Minute
	DefaultProviderTimeout = 30 * api.Second
	DefaultEventBufferSize = 256
	DefaultWSQueueSize     = 64

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultRedisPrefix   = "workshop"

	DefaultADBPath      = "adb"
	DefaultFastbootPath = "fastboot"

	DefaultAuditPrefix     = "audit"
	DefaultMQTTClientID    = "device-workshop"
	DefaultMQTTTopicPrefix = "workshop/devices"

	MaxLockTimeout     = 24 * 60 * api.Minute
	MaxProviderTimeout = 60 * api.Minute
	MaxEventBufferSize = 1_000_000
	MaxWSQueueSize     = 100_000
	MaxRedisDB         = 15
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidLockTimeout     = errors.New("lock timeout must be positive")
	ErrInvalidProviderTimeout = errors.New("provider timeout must be positive")
	ErrInvalidLockBackend     = errors.New("invalid lock backend")
	ErrRedisAddrRequired      = errors.New("redis lock backend requires addr")
	ErrInvalidEventBuffer     = errors.New("event buffer size must be positive")
	ErrInvalidWSQueueSize     = errors.New(
		"websocket queue size must be positive",
	)
	ErrMQTTTopicPrefixEmpty = errors.New(
		"mqtt topic prefix required with broker",
	)
)

var validLockBackends = util.SetOf(LockBackendMemory, LockBackendRedis)

// NewDefaultConfig creates a configuration with sensible defaults for the
// server, locks, providers, and progress fan-out
func NewDefaultConfig() *Config {
	return &Config{
		APIPort:  DefaultAPIPort,
		APIHost:  DefaultAPIHost,
		LogLevel: DefaultLogLevel,
		Lock: LockConfig{
			Backend: LockBackendMemory,
			Timeout: DefaultLockTimeout,
			Redis: RedisConfig{
				Addr:   DefaultRedisEndpoint,
				DB:     DefaultRedisDB,
				Prefix: DefaultRedisPrefix,
			},
		},
		Providers: ProviderConfig{
			Timeout:      DefaultProviderTimeout,
			ADBPath:      DefaultADBPath,
			FastbootPath: DefaultFastbootPath,
		},
		EventBufferSize:    DefaultEventBufferSize,
		ShutdownTimeout:    DefaultShutdownTimeout,
		AuditPrefix:        DefaultAuditPrefix,
		WebSocketQueueSize: DefaultWSQueueSize,
		MQTT: MQTTConfig{
			ClientID:    DefaultMQTTClientID,
			TopicPrefix: DefaultMQTTTopicPrefix,
		},
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed; values parsed before
// the failure are kept
func (c *Config) LoadFromEnv() error {
	loadEnvString("API_HOST", &c.APIHost)
	loadEnvString("LOG_LEVEL", &c.LogLevel)
	loadEnvString("MANIFEST_PATH", &c.ManifestPath)

	loadEnvString("LOCK_BACKEND", &c.Lock.Backend)
	loadEnvString("LOCK_REDIS_ADDR", &c.Lock.Redis.Addr)
	loadEnvString("LOCK_REDIS_PASSWORD", &c.Lock.Redis.Password)
	loadEnvString("LOCK_REDIS_PREFIX", &c.Lock.Redis.Prefix)

	loadEnvString("ADB_PATH", &c.Providers.ADBPath)
	loadEnvString("FASTBOOT_PATH", &c.Providers.FastbootPath)
	loadEnvString("IOS_TOOL_DIR", &c.Providers.IOSToolDir)
	loadEnvString("REMOTE_AGENT_URL", &c.Providers.RemoteAgentURL)

	loadEnvString("AUDIT_BUCKET_URL", &c.AuditBucketURL)
	loadEnvString("AUDIT_PREFIX", &c.AuditPrefix)

	loadEnvString("MQTT_BROKER_URL", &c.MQTT.BrokerURL)
	loadEnvString("MQTT_CLIENT_ID", &c.MQTT.ClientID)
	loadEnvString("MQTT_TOPIC_PREFIX", &c.MQTT.TopicPrefix)

	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TRACING_ENABLED: %q", v)
		}
		c.TracingEnabled = enabled
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %q", v)
		}
		c.ShutdownTimeout = d
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := loadEnvInt(
		"LOCK_REDIS_DB", &c.Lock.Redis.DB, -1, MaxRedisDB,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"LOCK_TIMEOUT", &c.Lock.Timeout, 0, MaxLockTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"PROVIDER_TIMEOUT", &c.Providers.Timeout, 0, MaxProviderTimeout,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"EVENT_BUFFER_SIZE", &c.EventBufferSize, 0, MaxEventBufferSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"WS_QUEUE_SIZE", &c.WebSocketQueueSize, 0, MaxWSQueueSize,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.Lock.Timeout <= 0 {
		return ErrInvalidLockTimeout
	}

	if !validLockBackends.Contains(c.Lock.Backend) {
		return fmt.Errorf("%w: %s", ErrInvalidLockBackend, c.Lock.Backend)
	}

	if c.Lock.Backend == LockBackendRedis && c.Lock.Redis.Addr == "" {
		return ErrRedisAddrRequired
	}

	if c.Providers.Timeout <= 0 {
		return ErrInvalidProviderTimeout
	}

	if c.EventBufferSize <= 0 {
		return ErrInvalidEventBuffer
	}

	if c.WebSocketQueueSize <= 0 {
		return ErrInvalidWSQueueSize
	}

	if c.MQTT.BrokerURL != "" && c.MQTT.TopicPrefix == "" {
		return ErrMQTTTopicPrefixEmpty
	}

	return nil
}

// LockTimeout returns the configured lock TTL as a duration
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Lock.Timeout) * time.Millisecond
}

// ProviderTimeout returns the per-call provider timeout as a duration
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Providers.Timeout) * time.Millisecond
}

func loadEnvString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
