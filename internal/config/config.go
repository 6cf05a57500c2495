package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	MySQL          MySQLConfig          `yaml:"mysql"`
	Redis          RedisConfig          `yaml:"redis"`
	JWT            JWTConfig            `yaml:"jwt"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Log            LogConfig            `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
}

type MySQLConfig struct {
	Host         string        `yaml:"host" default:"localhost"`
	Port         int           `yaml:"port" default:"3306"`
	DBName       string        `yaml:"db" default:"pjo_forum"`
	User         string        `yaml:"user" default:"root"`
	Password     string        `yaml:"pass" default:"root"`
	MaxOpenConns int           `yaml:"max_open" default:"10"`
	MaxIdleConns int           `yaml:"max_idle" default:"5"`
	MaxLifetime  time.Duration `yaml:"max_lifetime" default:"1h"`
}

func (c MySQLConfig) DSN() string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" default:"false"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"pass" default:""`
	DB       int    `yaml:"db" default:"0"`
	Prefix   string `yaml:"prefix" default:"rl"`
}

// JWTConfig describes the tokens minted by the external auth service.
// They are verified here, never issued.
type JWTConfig struct {
	Secret    string        `yaml:"secret" default:"change-me-please-change-me-please-32"`
	Issuer    string        `yaml:"issuer" default:"forum-auth"`
	ClockSkew time.Duration `yaml:"clock_skew" default:"60s"`
}

type RateLimitConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval" default:"5m"`
	Edge          EdgeConfig    `yaml:"edge"`
	Message       ActionPolicy  `yaml:"message"`
	Report        ActionPolicy  `yaml:"report"`
	Thread        ActionPolicy  `yaml:"thread"`
	Post          ActionPolicy  `yaml:"post"`
}

type ActionPolicy struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// EdgeConfig drives the per-IP token bucket applied before routing.
// It is on unless disabled explicitly.
type EdgeConfig struct {
	Disabled  bool          `yaml:"disabled" default:"false"`
	RPS       float64       `yaml:"rps" default:"10"`
	Burst     int           `yaml:"burst" default:"20"`
	KeyHeader string        `yaml:"key_header" default:""`
	TrustXFF  bool          `yaml:"trust_xff" default:"false"`
	IdleTTL   time.Duration `yaml:"idle_ttl" default:"15m"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" default:"1"`
	Interval         time.Duration `yaml:"interval" default:"60s"`
	Timeout          time.Duration `yaml:"timeout" default:"30s"`
	FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
}

type LogConfig struct {
	LevelStr string `yaml:"level" default:"info"`
}

// Actions maps every throttled action name to its policy.
func (c RateLimitConfig) Actions() map[string]ActionPolicy {
	return map[string]ActionPolicy{
		"message": c.Message,
		"report":  c.Report,
		"thread":  c.Thread,
		"post":    c.Post,
	}
}

// SetDefaults is invoked by creasty/defaults after tag defaults are applied.
// Per-action quotas differ, so struct tags on ActionPolicy cannot express them.
func (c *RateLimitConfig) SetDefaults() {
	if defaults.CanUpdate(c.Message.MaxRequests) {
		c.Message = ActionPolicy{MaxRequests: 20, Window: time.Minute}
	}
	if defaults.CanUpdate(c.Report.MaxRequests) {
		c.Report = ActionPolicy{MaxRequests: 5, Window: 10 * time.Minute}
	}
	if defaults.CanUpdate(c.Thread.MaxRequests) {
		c.Thread = ActionPolicy{MaxRequests: 3, Window: 10 * time.Minute}
	}
	if defaults.CanUpdate(c.Post.MaxRequests) {
		c.Post = ActionPolicy{MaxRequests: 10, Window: time.Minute}
	}
}

func (c *Config) Validate() error {
	if len(c.JWT.Secret) < 32 {
		return errors.New("jwt secret must be at least 32 bytes")
	}
	for name, p := range c.RateLimit.Actions() {
		if p.MaxRequests <= 0 || p.Window <= 0 {
			return fmt.Errorf("rate_limit.%s: max_requests and window must be positive", name)
		}
		if p.Window < time.Millisecond {
			return fmt.Errorf("rate_limit.%s: window must be at least 1ms", name)
		}
	}
	if !c.RateLimit.Edge.Disabled && (c.RateLimit.Edge.RPS <= 0 || c.RateLimit.Edge.Burst <= 0) {
		return errors.New("rate_limit.edge: rps and burst must be positive")
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/local.yaml"
	}
	return Load(path)
}

func New() (*Config, error) {
	cfg, err := LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := defaults.Set(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
