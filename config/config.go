// Package config loads the gateway configuration: built-in defaults, then an
// optional YAML file, then SENSORGATE_* environment variables. Command line
// flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/cyberinferno/sensorgate/eventlog"
	"github.com/cyberinferno/sensorgate/gateway"
	"github.com/cyberinferno/sensorgate/logger"
	"github.com/cyberinferno/sensorgate/protocol"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type ThresholdConfig struct {
	NearPoint int `yaml:"near_point"`
	DarkPoint int `yaml:"dark_point"`
}

type ReplyConfig struct {
	NulTerminated bool `yaml:"nul_terminated"`
	LegacyDetect  bool `yaml:"legacy_detect"`
}

type ErrorLogConfig struct {
	Dir string `yaml:"dir"`
	// Proximity and Light are the base file names for categories 0 and 1.
	Proximity string `yaml:"proximity"`
	Light     string `yaml:"light"`
}

// FileNames returns the base file names keyed by category.
func (e ErrorLogConfig) FileNames() map[int]string {
	return map[int]string{
		int(protocol.CategoryProximity): e.Proximity,
		int(protocol.CategoryLight):     e.Light,
	}
}

type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

type SequenceConfig struct {
	Backend string      `yaml:"backend"`
	Redis   RedisConfig `yaml:"redis"`
}

type LogConfig struct {
	Service string `yaml:"service"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
}

// Config is the full gateway configuration.
type Config struct {
	Listen         string          `yaml:"listen"`
	MaxClients     int             `yaml:"max_clients"`
	ReadBufferSize int             `yaml:"read_buffer_size"`
	Thresholds     ThresholdConfig `yaml:"thresholds"`
	Replies        ReplyConfig     `yaml:"replies"`
	ErrorLog       ErrorLogConfig  `yaml:"error_log"`
	Sequence       SequenceConfig  `yaml:"sequence"`
	Log            LogConfig       `yaml:"log"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Listen:         ":9000",
		MaxClients:     gateway.DefaultMaxClients,
		ReadBufferSize: gateway.DefaultReadBufferSize,
		Thresholds: ThresholdConfig{
			NearPoint: protocol.DefaultNearPoint,
			DarkPoint: protocol.DefaultDarkPoint,
		},
		Replies: ReplyConfig{
			NulTerminated: true,
		},
		ErrorLog: ErrorLogConfig{
			Dir:       "error",
			Proximity: eventlog.DefaultFileNames[int(protocol.CategoryProximity)],
			Light:     eventlog.DefaultFileNames[int(protocol.CategoryLight)],
		},
		Sequence: SequenceConfig{
			Backend: BackendMemory,
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "sensorgate:seq:",
			},
		},
		Log: LogConfig{
			Service: "sensorgate",
			Level:   "info",
			Format:  string(logger.FormatAuto),
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overrides fields from SENSORGATE_* variables looked up with lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}

		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
		}

		*dst = n
		return nil
	}

	flag := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}

		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v)
		}

		*dst = b
		return nil
	}

	str("SENSORGATE_LISTEN", &c.Listen)
	str("SENSORGATE_ERROR_LOG_DIR", &c.ErrorLog.Dir)
	str("SENSORGATE_SEQUENCE_BACKEND", &c.Sequence.Backend)
	str("SENSORGATE_REDIS_ADDR", &c.Sequence.Redis.Addr)
	str("SENSORGATE_REDIS_PASSWORD", &c.Sequence.Redis.Password)
	str("SENSORGATE_LOG_LEVEL", &c.Log.Level)
	str("SENSORGATE_LOG_FORMAT", &c.Log.Format)
	str("SENSORGATE_LOG_DIR", &c.Log.Dir)

	return errors.Join(
		num("SENSORGATE_MAX_CLIENTS", &c.MaxClients),
		num("SENSORGATE_NEAR_POINT", &c.Thresholds.NearPoint),
		num("SENSORGATE_DARK_POINT", &c.Thresholds.DarkPoint),
		num("SENSORGATE_REDIS_DB", &c.Sequence.Redis.DB),
		flag("SENSORGATE_LEGACY_DETECT", &c.Replies.LegacyDetect),
	)
}

// SetPort replaces the port of the listen address, keeping its host.
func (c *Config) SetPort(port string) error {
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("%w: port %q", ErrInvalid, port)
	}

	host, _, err := net.SplitHostPort(c.Listen)
	if err != nil {
		host = ""
	}

	c.Listen = net.JoinHostPort(host, port)
	return nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		bad("listen address %q: %v", c.Listen, err)
	}
	if c.MaxClients < 1 {
		bad("max_clients must be at least 1, got %d", c.MaxClients)
	}
	if c.ReadBufferSize < 1 {
		bad("read_buffer_size must be at least 1, got %d", c.ReadBufferSize)
	}
	if c.ErrorLog.Dir == "" {
		bad("error_log.dir is empty")
	}
	if strings.TrimSpace(c.ErrorLog.Proximity) == "" {
		bad("error_log.proximity is empty")
	}
	if strings.TrimSpace(c.ErrorLog.Light) == "" {
		bad("error_log.light is empty")
	}
	switch c.Sequence.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Sequence.Redis.Addr == "" {
			bad("sequence.redis.addr is empty")
		}
	default:
		bad("unknown sequence backend %q", c.Sequence.Backend)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		bad("%v", err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		bad("%v", err)
	}

	return errors.Join(errs...)
}

// GatewayOptions converts the configuration into gateway options.
func (c Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		Name:           c.Log.Service,
		Addr:           c.Listen,
		MaxClients:     c.MaxClients,
		ReadBufferSize: c.ReadBufferSize,
		Protocol: protocol.Options{
			NearPoint:     c.Thresholds.NearPoint,
			DarkPoint:     c.Thresholds.DarkPoint,
			NulTerminated: c.Replies.NulTerminated,
			LegacyDetect:  c.Replies.LegacyDetect,
		},
	}
}

// RedisKey returns the counter key for category.
func (c Config) RedisKey(category int) string {
	return fmt.Sprintf("%s%d", c.Sequence.Redis.KeyPrefix, category)
}
