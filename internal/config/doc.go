// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Every command also runs without a file: Default returns the built-in values,
// and command-line flags override whatever was loaded.
package config
