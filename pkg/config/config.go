// Package config provides configuration handling for the domain monitor
package config

import (
	"errors"
	"fmt"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // time zones must resolve on hosts without a zoneinfo database

	"gopkg.in/yaml.v3"

	"github.com/mallocator/domain-mon/pkg/logger"
)

// DefaultCustomName is used when custom_name is blank
const DefaultCustomName = "Domain Monitor"

// Store backends
const (
	StoreFile  = "file"
	StoreRedis = "redis"
)

// Config holds application settings
type Config struct {
	// Working directory holding the domain list and the file store
	Directory string `yaml:"-"`

	// Report settings
	TimeZone    string `yaml:"time_zone"`
	CustomName  string `yaml:"custom_name"`
	FromAddress string `yaml:"from_address"`
	ToAddress   string `yaml:"to_address"`

	// File names, relative to Directory
	DomainsFile  string `yaml:"domains_file"`
	ExpiriesFile string `yaml:"expiries_file"`
	HeadFile     string `yaml:"head_file"`

	// Delay between WHOIS requests during update, 0 disables it
	Wait time.Duration `yaml:"wait"`

	// Wall-clock budget for the whole process, 0 means unlimited
	MaxExecTime time.Duration `yaml:"max_exec_time"`

	// WHOIS transport settings
	WhoisTimeout    time.Duration `yaml:"whois_timeout"`
	WhoisRetries    int           `yaml:"whois_retries"`
	WhoisRetryDelay time.Duration `yaml:"whois_retry_delay"`

	// Persistence backend: "file" or "redis"
	Store         string `yaml:"store"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`

	// SMTP configuration for report delivery
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	SMTPUser string `yaml:"smtp_user"`
	SMTPPass string `yaml:"smtp_pass"`

	// Logger instance
	Log *logger.Logger `yaml:"-"`

	location *time.Location
}

// Error reports a missing or invalid setting
type Error struct {
	Field string
	Err   error
}

func (e *Error) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid '%s' value: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new configuration with default values
func New(log *logger.Logger) *Config {
	return &Config{
		Directory:       ".",
		TimeZone:        "UTC",
		CustomName:      DefaultCustomName,
		DomainsFile:     "domains.txt",
		ExpiriesFile:    "expiries.json",
		HeadFile:        "head.txt",
		Wait:            time.Second,
		MaxExecTime:     570 * time.Second,
		WhoisTimeout:    3 * time.Second,
		WhoisRetries:    5,
		WhoisRetryDelay: time.Second,
		Store:           StoreFile,
		RedisPrefix:     "domain-mon:",
		SMTPPort:        25,
		Log:             log,
	}
}

// LoadFromFile loads configuration from a YAML file. A missing file is only
// an error when required is set.
func (c *Config) LoadFromFile(path string, required bool) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			c.Log.Debugf("No config file at %s, using defaults", path)
			return nil
		}
		return &Error{Err: fmt.Errorf("reading config %s: %w", path, err)}
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return &Error{Err: fmt.Errorf("parsing config %s: %w", path, err)}
	}

	return nil
}

// LoadFromEnv overrides configuration with environment variables
func (c *Config) LoadFromEnv() {
	setString(&c.TimeZone, "TIME_ZONE")
	setString(&c.CustomName, "CUSTOM_NAME")
	setString(&c.FromAddress, "FROM_ADDRESS")
	setString(&c.ToAddress, "TO_ADDRESS")
	setDuration(&c.Wait, "WAIT")
	setDuration(&c.MaxExecTime, "MAX_EXEC_TIME")
	setDuration(&c.WhoisTimeout, "WHOIS_TIMEOUT")
	setInt(&c.WhoisRetries, "WHOIS_RETRIES")
	setString(&c.Store, "STORE")
	setString(&c.RedisAddr, "REDIS_ADDR")
	setString(&c.RedisPassword, "REDIS_PASSWORD")
	setInt(&c.RedisDB, "REDIS_DB")
	setString(&c.SMTPHost, "SMTP_HOST")
	setInt(&c.SMTPPort, "SMTP_PORT")
	setString(&c.SMTPUser, "SMTP_USER")
	setString(&c.SMTPPass, "SMTP_PASS")
}

// Validate checks every setting and resolves the time zone. It must run
// before any of the core components are used.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil || c.TimeZone == "" {
		return &Error{Field: "time_zone", Err: fmt.Errorf("'%s' is not an IANA time zone, e.g. 'Europe/London'", c.TimeZone)}
	}
	c.location = loc

	if strings.TrimSpace(c.CustomName) == "" {
		c.CustomName = DefaultCustomName
	}

	// Both addresses empty means reports never carry email headers
	if c.FromAddress != "" || c.ToAddress != "" {
		if !validAddress(c.FromAddress) {
			return &Error{Field: "from_address", Err: fmt.Errorf("'%s' is not a valid email address", c.FromAddress)}
		}
		if !validAddress(c.ToAddress) {
			return &Error{Field: "to_address", Err: fmt.Errorf("'%s' is not a valid email address", c.ToAddress)}
		}
	}

	if c.Wait < 0 {
		return &Error{Field: "wait", Err: errors.New("must not be negative")}
	}
	if c.MaxExecTime < 0 {
		return &Error{Field: "max_exec_time", Err: errors.New("must not be negative")}
	}
	if c.WhoisTimeout <= 0 {
		return &Error{Field: "whois_timeout", Err: errors.New("must be positive")}
	}
	if c.WhoisRetries < 1 {
		return &Error{Field: "whois_retries", Err: errors.New("must be at least 1")}
	}

	switch c.Store {
	case StoreFile:
	case StoreRedis:
		if c.RedisAddr == "" {
			return &Error{Field: "redis_addr", Err: errors.New("required when store is redis")}
		}
	default:
		return &Error{Field: "store", Err: fmt.Errorf("unknown backend '%s'", c.Store)}
	}

	return nil
}

// Location returns the validated report time zone
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// HeadersConfigured reports whether sender and recipient are both set
func (c *Config) HeadersConfigured() bool {
	return c.FromAddress != "" && c.ToAddress != ""
}

// Path resolves name against the working directory
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Directory, name)
}

// validAddress accepts a bare address without display name or brackets
func validAddress(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Name == "" && addr.Address == s
}

// setString sets a string field from env
func setString(field *string, env string) {
	if v := os.Getenv(env); v != "" {
		*field = strings.TrimSpace(v)
	}
}

// setInt sets an int field from env
func setInt(field *int, env string) {
	if v := os.Getenv(env); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*field = i
		}
	}
}

// setDuration sets a time.Duration field from env
func setDuration(field *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*field = d
		}
	}
}
