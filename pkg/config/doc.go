// Package config handles server-side configuration loading: the YAML config
// file with defaults, and the mail/store secrets taken from the environment.
package config
