// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package tcsctlconfig provides configuration parsing and validation for tcsctl.
//
// Configuration is stored at ~/.config/tcsctl/config.yaml (or $TCSCTL_CONFIG_DIR/config.yaml).
// Collected data is stored at ~/.local/share/tcsctl/v1 (or $TCSCTL_DATA_DIR/v1).
//
// The API token never lives in the configuration file: it comes from the
// TINKOFF_TOKEN environment variable, optionally loaded from a local .env file.
package tcsctlconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bufdev/tcsctl/internal/pkg/tinkoffinvest"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the name of the configuration file within the config directory.
const ConfigFileName = "config.yaml"

// DefaultTimezoneName is the timezone used when the configuration does not
// set one. Europe/Moscow is the exchange timezone, matching the provider's
// own reporting.
const DefaultTimezoneName = "Europe/Moscow"

// configTemplate is the default configuration file template with comments.
// yaml.v3 does not preserve comments, so we hardcode the template string.
const configTemplate = `# The configuration file version.
#
# Required. The only current valid version is v1.
version: v1
# Tinkoff Invest configuration.
#
# Required. The brokerage account id is shown in the Tinkoff Invest app under
# account details, or returned by the UsersService/GetAccounts API method.
#
# The API token must be set via the TINKOFF_TOKEN environment variable
# (a local .env file is also read). Issue a read-only token in the portal
# under Settings > API.
tinkoff:
  # The brokerage account id operations are collected from.
  #
  # Required.
  account_id: ""
  # The REST gateway base URL.
  #
  # Optional. Defaults to the production gateway. Point this at the sandbox
  # gateway to work against sandbox accounts.
  # endpoint: https://sandbox-invest-public-api.tinkoff.ru/rest
# The IANA timezone for date ranges and window boundaries.
#
# Optional. Defaults to Europe/Moscow. Collection interprets --since/--until
# in this timezone, and aggregation aligns calendar windows to it.
# timezone: Europe/Moscow
`

// ExternalConfig is the YAML-serializable configuration file structure.
type ExternalConfig struct {
	// Version is the configuration file version (must be "v1").
	Version string `yaml:"version"`
	// Tinkoff holds the Tinkoff Invest configuration.
	Tinkoff ExternalTinkoffConfig `yaml:"tinkoff"`
	// Timezone is the optional IANA timezone name.
	Timezone string `yaml:"timezone"`
}

// ExternalTinkoffConfig holds Tinkoff Invest-specific configuration.
type ExternalTinkoffConfig struct {
	// AccountID is the brokerage account id.
	AccountID string `yaml:"account_id"`
	// Endpoint is the optional REST gateway base URL override.
	Endpoint string `yaml:"endpoint"`
}

// Config is the validated runtime configuration derived from the config file.
type Config struct {
	// AccountID is the brokerage account id operations are collected from.
	AccountID string
	// Endpoint is the REST gateway base URL.
	Endpoint string
	// TimezoneName is the IANA timezone name, e.g. "Europe/Moscow".
	TimezoneName string
	// Location is the resolved timezone. Date ranges and window boundaries
	// are computed in it.
	Location *time.Location
}

// NewConfig validates an ExternalConfig and returns a runtime Config.
func NewConfig(externalConfig ExternalConfig) (*Config, error) {
	if externalConfig.Version != "v1" {
		return nil, fmt.Errorf("unsupported config version %q, must be v1", externalConfig.Version)
	}
	if externalConfig.Tinkoff.AccountID == "" {
		return nil, errors.New("tinkoff.account_id is required")
	}
	endpoint := externalConfig.Tinkoff.Endpoint
	if endpoint == "" {
		endpoint = tinkoffinvest.DefaultEndpoint
	}
	timezoneName := externalConfig.Timezone
	if timezoneName == "" {
		timezoneName = DefaultTimezoneName
	}
	location, err := time.LoadLocation(timezoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezoneName, err)
	}
	return &Config{
		AccountID:    externalConfig.Tinkoff.AccountID,
		Endpoint:     endpoint,
		TimezoneName: timezoneName,
		Location:     location,
	}, nil
}

// ConfigFilePath returns the path to the configuration file within the given config directory.
func ConfigFilePath(configDirPath string) string {
	return filepath.Join(configDirPath, ConfigFileName)
}

// ReadConfig reads and validates the configuration file from the given config directory.
// Returns a clear error message directing users to run "tcsctl config init" if the file is missing.
func ReadConfig(configDirPath string) (*Config, error) {
	filePath := ConfigFilePath(configDirPath)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %s, run \"tcsctl config init\" to create one", filePath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	var externalConfig ExternalConfig
	if err := unmarshalYAMLStrict(data, &externalConfig); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
	}
	return NewConfig(externalConfig)
}

// InitConfig creates a new configuration file with a documented template.
// Creates the config directory if it does not exist.
// Returns the path to the created file, or an error if the file already exists.
func InitConfig(configDirPath string) (string, error) {
	filePath := ConfigFilePath(configDirPath)
	if _, err := os.Stat(filePath); err == nil {
		return "", fmt.Errorf("configuration file already exists: %s", filePath)
	}
	// Create the config directory if it does not exist.
	if err := os.MkdirAll(configDirPath, 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(configTemplate), 0o644); err != nil {
		return "", err
	}
	return filePath, nil
}

// ValidateConfig reads and validates the configuration file from the given config directory.
func ValidateConfig(configDirPath string) error {
	_, err := ReadConfig(configDirPath)
	return err
}

// unmarshalYAMLStrict unmarshals the data as YAML with strict field checking.
// If the data length is 0, this is a no-op.
func unmarshalYAMLStrict(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	yamlDecoder := yaml.NewDecoder(bytes.NewReader(data))
	// Reject unknown fields.
	yamlDecoder.KnownFields(true)
	if err := yamlDecoder.Decode(v); err != nil {
		return fmt.Errorf("could not unmarshal as YAML: %w", err)
	}
	return nil
}
