package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/ini.v1"
)

// EnvPrefix is prepended to upper-cased key names for environment overrides
const EnvPrefix = "DHCPDASH_"

// Config holds all application configuration
type Config struct {
	// Path is the file the configuration was loaded from, if any
	Path string

	// Server endpoints
	Server          string
	DeviceFeed      string
	PoolFeed        string
	ReserveEndpoint string

	// Timing
	RequestTimeout time.Duration
	ReconnectMin   time.Duration
	ReconnectMax   time.Duration

	// Headless mode
	HTTPListen string
	Headless   bool

	// Logging
	LogLevel string
	LogJSON  bool
	LogFile  string
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server:          "http://127.0.0.1:8080",
		DeviceFeed:      "/ws/allocations",
		PoolFeed:        "/ws/macpool",
		ReserveEndpoint: "/api/macs",
		RequestTimeout:  10 * time.Second,
		ReconnectMin:    time.Second,
		ReconnectMax:    30 * time.Second,
		HTTPListen:      "127.0.0.1:8068",
		LogLevel:        "info",
	}
}

// LoadFromFile loads configuration from INI file
func (c *Config) LoadFromFile(filename string) error {
	cfg, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, filename)
	if err != nil {
		return fmt.Errorf("load config file %s: %w", filename, err)
	}
	c.Path = filename

	section := cfg.Section("")
	c.Server = section.Key("server").MustString(c.Server)
	c.DeviceFeed = section.Key("devicefeed").MustString(c.DeviceFeed)
	c.PoolFeed = section.Key("poolfeed").MustString(c.PoolFeed)
	c.ReserveEndpoint = section.Key("reserveendpoint").MustString(c.ReserveEndpoint)
	c.RequestTimeout = section.Key("requesttimeout").MustDuration(c.RequestTimeout)
	c.ReconnectMin = section.Key("reconnectmin").MustDuration(c.ReconnectMin)
	c.ReconnectMax = section.Key("reconnectmax").MustDuration(c.ReconnectMax)
	c.HTTPListen = section.Key("httplisten").MustString(c.HTTPListen)
	c.Headless = section.Key("headless").MustBool(c.Headless)
	c.LogLevel = section.Key("loglevel").MustString(c.LogLevel)
	c.LogJSON = section.Key("logjson").MustBool(c.LogJSON)
	c.LogFile = section.Key("logfile").MustString(c.LogFile)

	return nil
}

func lookupEnv(key string) (string, bool) {
	v := os.Getenv(EnvPrefix + strings.ToUpper(key))
	return v, v != ""
}

// LoadFromEnv loads configuration from environment variables. Values that
// do not parse are left unchanged.
func (c *Config) LoadFromEnv() {
	strs := map[string]*string{
		"server":          &c.Server,
		"devicefeed":      &c.DeviceFeed,
		"poolfeed":        &c.PoolFeed,
		"reserveendpoint": &c.ReserveEndpoint,
		"httplisten":      &c.HTTPListen,
		"loglevel":        &c.LogLevel,
		"logfile":         &c.LogFile,
	}
	for key, dst := range strs {
		if v, ok := lookupEnv(key); ok {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"requesttimeout": &c.RequestTimeout,
		"reconnectmin":   &c.ReconnectMin,
		"reconnectmax":   &c.ReconnectMax,
	}
	for key, dst := range durations {
		if v, ok := lookupEnv(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	bools := map[string]*bool{
		"headless": &c.Headless,
		"logjson":  &c.LogJSON,
	}
	for key, dst := range bools {
		if v, ok := lookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
}

// Validate checks the configuration for values the dashboard cannot run with
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.Server)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("server: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("server: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = append(errs, errors.New("server: missing host"))
	}

	for name, p := range map[string]string{
		"devicefeed":      c.DeviceFeed,
		"poolfeed":        c.PoolFeed,
		"reserveendpoint": c.ReserveEndpoint,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s: path must start with /, got %q", name, p))
		}
	}

	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("requesttimeout: must be positive, got %s", c.RequestTimeout))
	}
	if c.ReconnectMin <= 0 {
		errs = append(errs, fmt.Errorf("reconnectmin: must be positive, got %s", c.ReconnectMin))
	}
	if c.ReconnectMax < c.ReconnectMin {
		errs = append(errs, fmt.Errorf("reconnectmax: %s is below reconnectmin %s", c.ReconnectMax, c.ReconnectMin))
	}
	if c.Headless && c.HTTPListen == "" {
		errs = append(errs, errors.New("httplisten: required in headless mode"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("loglevel: %w", err))
	}

	return errors.Join(errs...)
}

// DeviceFeedURL returns the websocket address of the device feed
func (c *Config) DeviceFeedURL() (string, error) {
	return c.endpoint(c.DeviceFeed, true)
}

// PoolFeedURL returns the websocket address of the pool feed
func (c *Config) PoolFeedURL() (string, error) {
	return c.endpoint(c.PoolFeed, true)
}

// ReserveURL returns the address reservation batches are posted to
func (c *Config) ReserveURL() (string, error) {
	return c.endpoint(c.ReserveEndpoint, false)
}

// endpoint resolves path against the server URL. Websocket endpoints use
// ws for http servers and wss for https servers.
func (c *Config) endpoint(path string, websocket bool) (string, error) {
	base, err := url.Parse(c.Server)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path %q: %w", path, err)
	}

	u := base.ResolveReference(ref)
	if websocket {
		switch u.Scheme {
		case "https":
			u.Scheme = "wss"
		default:
			u.Scheme = "ws"
		}
	}
	return u.String(), nil
}

// New creates a new configuration instance. A missing or unreadable file
// leaves the defaults in place; environment variables are applied on top.
func New(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.LoadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
