package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Transport names the way outbound calls prove identity to the backend.
type Transport string

const (
	TransportBearer Transport = "bearer"
	TransportCookie Transport = "cookie"
)

// Storage drivers for the persisted credential.
const (
	StorageFile  = "file"
	StorageRedis = "redis"
)

var (
	errNoBaseURL        = errors.New("backend base_url is required")
	errUnknownTransport = errors.New("unknown backend transport")
	errUnknownStorage   = errors.New("unknown storage driver")
)

type Config struct {
	Console Console `yaml:"console"`
	Backend Backend `yaml:"backend"`
	Storage Storage `yaml:"storage"`
}

type Console struct {
	Port int `yaml:"port"`
	// SessionLifetime bounds the browser session holding flash messages and
	// the return-to location.
	SessionLifetime time.Duration `yaml:"session_lifetime"`
	// PhoneRegion is the region assumed for mobile numbers entered without
	// an international prefix.
	PhoneRegion string `yaml:"phone_region"`
	// PendingWait is how long a protected view holds a request while the
	// session bootstraps before showing the loading placeholder.
	PendingWait time.Duration `yaml:"pending_wait"`
	// SignInAfterRegister signs a newly registered user straight in.
	SignInAfterRegister bool `yaml:"sign_in_after_register"`
}

type Backend struct {
	BaseURL    string        `yaml:"base_url"`
	Transport  Transport     `yaml:"transport"`
	AuthScheme string        `yaml:"auth_scheme"`
	CSRFCookie string        `yaml:"csrf_cookie"`
	CSRFHeader string        `yaml:"csrf_header"`
	Timeout    time.Duration `yaml:"timeout"`
}

type Storage struct {
	Driver string `yaml:"driver"`
	Key    string `yaml:"key"`
	Path   string `yaml:"path"`
	Redis  Redis  `yaml:"redis"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Path is the location of the yaml file read by New.
type Path string

func Default() *Config {
	return &Config{
		Console: Console{
			Port:            8123,
			SessionLifetime: time.Hour,
			PhoneRegion:     "US",
			PendingWait:     2 * time.Second,
		},
		Backend: Backend{
			BaseURL:    "http://localhost:8000/api/",
			Transport:  TransportBearer,
			AuthScheme: "Bearer",
			CSRFCookie: "csrftoken",
			CSRFHeader: "X-CSRFToken",
			Timeout:    10 * time.Second,
		},
		Storage: Storage{
			Driver: StorageFile,
			Key:    "token",
			Path:   "./data/credential.json",
		},
	}
}

// New reads the yaml file at p over the defaults, then applies environment
// overrides. A missing file is not an error.
func New(p Path) (*Config, error) {
	c := Default()

	if p != "" {
		b, err := os.ReadFile(string(p))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(b, c); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", p, err)
			}
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CONSOLE_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("CONSOLE_TRANSPORT"); v != "" {
		c.Backend.Transport = Transport(v)
	}
	if v := os.Getenv("CONSOLE_STORAGE"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CONSOLE_REDIS_ADDR"); v != "" {
		c.Storage.Redis.Addr = v
	}
	if v := os.Getenv("CONSOLE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CONSOLE_PORT: %w", err)
		}
		c.Console.Port = port
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errNoBaseURL
	}

	switch c.Backend.Transport {
	case TransportBearer, TransportCookie:
	default:
		return fmt.Errorf("%w: %q", errUnknownTransport, c.Backend.Transport)
	}

	switch c.Storage.Driver {
	case StorageFile, StorageRedis:
	default:
		return fmt.Errorf("%w: %q", errUnknownStorage, c.Storage.Driver)
	}

	return nil
}
