// Package config loads the service configuration from an optional YAML file
// and RAP_-prefixed environment variables, applies defaults and validates
// the result before any component is built from it.
package config
