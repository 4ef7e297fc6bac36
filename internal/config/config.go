package config

import (
	"fmt"
	"io/ioutil"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/zinrai/l2network-mvp-go/internal/domain"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Database Database `yaml:"database"`
	Vlan     Vlan     `yaml:"vlan"`
	NSX      NSX      `yaml:"nsx"`
	Listen   string   `yaml:"listen"`
}

type Database struct {
	Driver             string `yaml:"driver"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Host               string `yaml:"host"`
	Name               string `yaml:"name"`
	SSLMode            string `yaml:"sslmode"`
	MaxOpenConnections int    `yaml:"max_open_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections"`
}

type Vlan struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type NSX struct {
	URL           string        `yaml:"url"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	MaxAttempts   int           `yaml:"max_attempts"`
}

func Default() *Config {
	return &Config{
		Database: Database{
			Driver:             DriverPostgres,
			Host:               "localhost",
			Name:               "l2network",
			SSLMode:            "disable",
			MaxOpenConnections: 10,
			MaxIdleConnections: 5,
		},
		Vlan: Vlan{
			Start: 100,
			End:   3000,
		},
		NSX: NSX{
			RetryInterval: 2 * time.Second,
			MaxAttempts:   5,
		},
		Listen: ":8080",
	}
}

// Load reads a YAML file on top of Default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if err := domain.ValidateVlanRange(c.Vlan.Start, c.Vlan.End); err != nil {
		return err
	}
	if c.NSX.MaxAttempts < 1 {
		return fmt.Errorf("nsx max_attempts must be at least 1, got %d", c.NSX.MaxAttempts)
	}
	if c.NSX.RetryInterval <= 0 {
		return fmt.Errorf("nsx retry_interval must be positive, got %s", c.NSX.RetryInterval)
	}
	return nil
}

// DSN assembles the lib/pq connection URL.
func (d Database) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   d.Host,
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else {
			u.User = url.User(d.User)
		}
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
	}
	return u.String()
}
