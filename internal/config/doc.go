// Package config loads, normalizes, and validates uplink's TOML
// configuration: directory layout, description composition options, HTTP
// client settings, and the per-tracker credential and session blocks.
package config
