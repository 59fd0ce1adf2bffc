// Package config defines the settings used by the console and mock API
// binaries and provides helpers to load, validate and save them in YAML.
//
// Validate fills every unset field with its default, so a zero Config
// describes a console talking HTTP to a mock API on localhost.
package config
