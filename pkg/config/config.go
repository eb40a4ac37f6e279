package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DefaultListenAddress   = ":8000"
	DefaultStorePath       = "catfacts.db"
	DefaultStoreLockWait   = 30 * time.Second
	DefaultStoreBusyWait   = 5 * time.Second
	DefaultMailPort        = 587
	DefaultMailSubject     = "Your daily cat fact!"
	DefaultScheduleSpec    = "@midnight"
	DefaultSenderName      = "Cat Facts"
	DefaultAuditTopic      = "catfacts-audit"
	DefaultRateLimitPerSec = 5
	DefaultRateLimitBurst  = 10
)

const (
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 30 * time.Second
	DefaultIdleTimeout       = 2 * time.Minute
)

type Server struct {
	ListenAddress  string         `yaml:"listenAddress"`
	TrustedProxies []string       `yaml:"trustedProxies"` // IPs/CIDRs to trust for X-Forwarded-For headers
	Timeouts       ServerTimeouts `yaml:"timeouts"`
}

// ServerTimeouts are duration strings applied to the http.Server.
type ServerTimeouts struct {
	ReadTimeout       string `yaml:"readTimeout"`
	ReadHeaderTimeout string `yaml:"readHeaderTimeout"`
	WriteTimeout      string `yaml:"writeTimeout"`
	IdleTimeout       string `yaml:"idleTimeout"`
}

func (t ServerTimeouts) GetReadTimeout() time.Duration {
	return parseDurationOrDefault(t.ReadTimeout, DefaultReadTimeout)
}

func (t ServerTimeouts) GetReadHeaderTimeout() time.Duration {
	return parseDurationOrDefault(t.ReadHeaderTimeout, DefaultReadHeaderTimeout)
}

func (t ServerTimeouts) GetWriteTimeout() time.Duration {
	return parseDurationOrDefault(t.WriteTimeout, DefaultWriteTimeout)
}

func (t ServerTimeouts) GetIdleTimeout() time.Duration {
	return parseDurationOrDefault(t.IdleTimeout, DefaultIdleTimeout)
}

type Store struct {
	// Path is the SQLite database file, or ":memory:".
	Path string `yaml:"path"`
	// LockTimeout bounds how long a caller waits for the store gate (e.g. "30s").
	LockTimeout string `yaml:"lockTimeout"`
	// BusyTimeout is passed to SQLite as _busy_timeout.
	BusyTimeout string `yaml:"busyTimeout"`
}

type Mail struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	SenderAddress      string `yaml:"senderAddress"`
	SenderName         string `yaml:"senderName"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	// RetryCount is the number of extra attempts per recipient. Zero sends once.
	RetryCount     int    `yaml:"retryCount"`
	RetryBackoffMs int    `yaml:"retryBackoffMs"`
	Subject        string `yaml:"subject"`
	// BodyTemplate overrides the built-in plain-text body (text/template, sprig funcs).
	BodyTemplate string `yaml:"bodyTemplate"`
	// Username and Password are never read from the file, see Secrets.
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

type Schedule struct {
	// Spec is a cron expression or descriptor evaluated in Timezone. Defaults to "@midnight".
	Spec string `yaml:"spec"`
	// Timezone is an IANA zone name. Empty means the operator's local time.
	Timezone string `yaml:"timezone"`
	// ComputeRetryBackoff is the initial backoff after a failed trigger computation.
	ComputeRetryBackoff string `yaml:"computeRetryBackoff"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type Audit struct {
	// Kafka is optional; when no brokers are configured events are only logged.
	Kafka Kafka `yaml:"kafka"`
}

type RateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// Tracing configures OpenTelemetry. Disabled by default.
type Tracing struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"serviceName"`
	// Exporter is one of otlp (default), stdout or none.
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Store     Store     `yaml:"store"`
	Mail      Mail      `yaml:"mail"`
	Schedule  Schedule  `yaml:"schedule"`
	Audit     Audit     `yaml:"audit"`
	RateLimit RateLimit `yaml:"rateLimit"`
	Tracing   Tracing   `yaml:"tracing"`
}

// Load loads the configuration from a YAML file.
// If configPath is empty, defaults to "./config.yaml". A missing default file is not an error;
// the zero config plus Defaults() is a usable configuration.
func Load(configPath ...string) (Config, error) {
	var config Config

	path := "./config.yaml"
	explicit := false
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
		explicit = true
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return config, nil
		}
		return config, fmt.Errorf("trying to open catfacts config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	return config, nil
}

// Defaults fills every unset field with its default value.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = DefaultListenAddress
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = DefaultMailPort
	}
	if c.Mail.Subject == "" {
		c.Mail.Subject = DefaultMailSubject
	}
	if c.Mail.SenderName == "" {
		c.Mail.SenderName = DefaultSenderName
	}
	if c.Schedule.Spec == "" {
		c.Schedule.Spec = DefaultScheduleSpec
	}
	if len(c.Audit.Kafka.Brokers) > 0 && c.Audit.Kafka.Topic == "" {
		c.Audit.Kafka.Topic = DefaultAuditTopic
	}
	if c.RateLimit.Rate <= 0 {
		c.RateLimit.Rate = DefaultRateLimitPerSec
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultRateLimitBurst
	}
}

// StoreLockTimeout returns the parsed store gate timeout.
func (c Config) StoreLockTimeout() time.Duration {
	return parseDurationOrDefault(c.Store.LockTimeout, DefaultStoreLockWait)
}

// StoreBusyTimeout returns the parsed SQLite busy timeout.
func (c Config) StoreBusyTimeout() time.Duration {
	return parseDurationOrDefault(c.Store.BusyTimeout, DefaultStoreBusyWait)
}

// ComputeRetryBackoff returns the initial backoff for failed trigger computations.
func (c Config) ComputeRetryBackoff() time.Duration {
	return parseDurationOrDefault(c.Schedule.ComputeRetryBackoff, time.Second)
}

// Location resolves Schedule.Timezone, falling back to time.Local.
func (c Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

func parseDurationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
