// Package config loads and saves the arrayacq server configuration.
//
// The configuration is a YAML file (or TOML, when the file name ends in
// .toml) stored in a platform-appropriate location:
//   - Linux: $XDG_CONFIG_HOME/arrayacq/config.yaml or $HOME/.config/arrayacq/config.yaml
//   - macOS: $HOME/.config/arrayacq/config.yaml
//   - Windows: %LOCALAPPDATA%\arrayacq\config.yaml
//
// A missing default file is not an error: Load returns Default(), which
// serves a synthetic dataset on port 55500.
//
// # Example
//
//	version: 1
//	data_file: /var/lib/arrayacq/datasets.db
//	dataset_name: phantom-1
//	port: 55500
//	log_level: debug
//	mdns: true
//	device:
//	  sampling_frequency: 40000000
//
// Keys that are present but out of range are rejected with an error
// wrapping ErrInvalid.
package config
