// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and Gardener contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package config provides the gateway configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrNoConfigVersion error is returned when the configuration does not specify
// config format version.
var ErrNoConfigVersion = errors.New("config format version not specified")

// ErrUnsupportedVersion is an error, which is returned when the config file
// uses an incompatible version format.
var ErrUnsupportedVersion = errors.New("unsupported config format version")

// ConfigFormatVersion represents the supported config format version.
const ConfigFormatVersion = "v1alpha1"

// Network API variants supported by the gateway.
const (
	// NetworkAPINeutron selects the L3-capable SDN network backend.
	NetworkAPINeutron = "neutron"

	// NetworkAPINova selects the flat network backend provided by the
	// compute service.
	NetworkAPINova = "nova"
)

// Config represents the gateway configuration.
type Config struct {
	// Version is the version of the config file.
	Version string `yaml:"version"`

	// Debug configures debug mode, if set to true.
	Debug bool `yaml:"debug"`

	// Logging represents the logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Redis represents the Redis configuration.
	Redis RedisConfig `yaml:"redis"`

	// Database represents the database configuration.
	Database DatabaseConfig `yaml:"database"`

	// API represents the configuration of the HTTP API service.
	API APIConfig `yaml:"api"`

	// Keystone represents the identity service configuration.
	Keystone KeystoneConfig `yaml:"keystone"`

	// Gateway represents the resource translation settings.
	Gateway GatewayConfig `yaml:"gateway"`

	// Worker represents the worker configuration.
	Worker WorkerConfig `yaml:"worker"`
}

// LoggingConfig provides the logging configuration settings.
type LoggingConfig struct {
	// Level is the log level, one of info, warn, error or debug.
	Level string `yaml:"level"`

	// Format is the format of log events, either text or json.
	Format string `yaml:"format"`

	// AddSource adds source code position to log events, if set.
	AddSource bool `yaml:"add_source"`

	// Attributes are additional attributes added to each log event.
	Attributes map[string]string `yaml:"attributes"`
}

// RedisConfig provides Redis specific configuration settings.
type RedisConfig struct {
	// Endpoint is the endpoint of the Redis service.
	Endpoint string `yaml:"endpoint"`
}

// DatabaseConfig provides database specific configuration settings.
type DatabaseConfig struct {
	// DSN is the Data Source Name to connect to.
	DSN string `yaml:"dsn"`

	// MigrationDirectory specifies an alternate location with migration
	// files.
	MigrationDirectory string `yaml:"migration_dir"`
}

// APIConfig provides the configuration of the HTTP API service.
type APIConfig struct {
	// Address is the address on which the API service listens.
	Address string `yaml:"address"`
}

// KeystoneConfig provides the identity service configuration.
type KeystoneConfig struct {
	// AuthEndpoint is the endpoint of the identity service, against which
	// bearer tokens from incoming requests are exchanged for service
	// clients.
	AuthEndpoint string `yaml:"auth_endpoint"`
}

// GatewayConfig provides the resource translation settings.
type GatewayConfig struct {
	// NetworkAPI selects the network backend variant, either
	// [NetworkAPINeutron] or [NetworkAPINova].
	NetworkAPI string `yaml:"network_api"`

	// PublicNetwork is the name of the external network used for floating
	// IP allocation and router gateways.
	PublicNetwork string `yaml:"public_network"`

	// DefaultNetworkName is the name of the default network.
	DefaultNetworkName string `yaml:"default_network_name"`

	// DefaultNetworkIPRange is the CIDR of the default network.
	DefaultNetworkIPRange string `yaml:"default_network_ip_range"`

	// DefaultVolumeSizeGB is the size of disks created without an
	// explicit size or source.
	DefaultVolumeSizeGB int64 `yaml:"default_volume_size_gb"`

	// Region is the name of the backend region served by the gateway.
	Region string `yaml:"region"`

	// RegionNames provides overrides for the backend-to-GCE region name
	// substitution.
	RegionNames map[string]string `yaml:"region_names"`
}

// WorkerConfig provides worker specific configuration settings.
type WorkerConfig struct {
	// Concurrency specifies the concurrency level for workers.
	Concurrency int `yaml:"concurrency"`

	// MetricsAddress is the address on which the worker serves its
	// metrics.
	MetricsAddress string `yaml:"metrics_address"`
}

// Parse parses the config from the given path.
func Parse(path string) (*Config, error) {
	var conf Config
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, err
	}

	if conf.Version == "" {
		return nil, ErrNoConfigVersion
	}

	if conf.Version != ConfigFormatVersion {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, conf.Version)
	}

	return &conf, nil
}

// MustParse parses the config from the given path, or panics in case of errors.
func MustParse(path string) *Config {
	config, err := Parse(path)
	if err != nil {
		panic(err)
	}

	return config
}
