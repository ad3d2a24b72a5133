// Package config handles loading and parsing of configuration from YAML files
// and environment variables. It defines the gateway configuration structure
// including the server address, service routes, rate limiting settings, and
// proxy timeouts.
package config
