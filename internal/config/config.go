package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	appName    = "arrayacq"
	configFile = "config.yaml"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Mutex for file operations
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory:
//   - Linux: $XDG_CONFIG_HOME/arrayacq or $HOME/.config/arrayacq
//   - macOS: $HOME/.config/arrayacq
//   - Windows: %LOCALAPPDATA%\arrayacq
func GetConfigDir() (string, error) {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName), nil
		}
		userProfile := os.Getenv("USERPROFILE")
		if userProfile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(userProfile, "AppData", "Local", appName), nil

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appName), nil
		}
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", appName), nil
	}
}

// GetConfigPath returns the full path to the default configuration file.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the configuration at path, or the default path when path is
// empty. A missing default file yields Default(); a missing explicit file is
// an error. Files ending in .toml are decoded as TOML, everything else as
// YAML. Unset fields keep their default values. The result is validated.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	fileMutex.Lock()
	data, err := os.ReadFile(path)
	fileMutex.Unlock()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data, isTOML(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a configuration document.
func Parse(data []byte, asTOML bool) (*Config, error) {
	cfg := Default()
	if asTOML {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		// io.EOF means an empty document
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and required keys.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported config version: %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	if c.DataFile != "" && c.DatasetName == "" {
		return fmt.Errorf("%w: key 'dataset_name' is required when 'data_file' is set", ErrInvalid)
	}
	if c.Device.SamplingFrequency <= 0 {
		return fmt.Errorf("%w: the value for key 'device.sampling_frequency' must be > 0", ErrInvalid)
	}
	if c.Device.MuxChannels < 0 {
		return fmt.Errorf("%w: the value for key 'device.mux_channels' must be >= 0", ErrInvalid)
	}
	if c.Pause < 0 {
		return fmt.Errorf("%w: the value for key 'pause' must be >= 0", ErrInvalid)
	}
	if c.DataFile == "" {
		s := c.Device.Synthetic
		if s.Channels < 1 {
			return fmt.Errorf("%w: the value for key 'device.synthetic.channels' must be >= 1", ErrInvalid)
		}
		if s.Samples < 1 {
			return fmt.Errorf("%w: the value for key 'device.synthetic.samples' must be >= 1", ErrInvalid)
		}
		if s.CenterFrequency <= 0 {
			return fmt.Errorf("%w: the value for key 'device.synthetic.center_frequency' must be > 0", ErrInvalid)
		}
	}
	return nil
}

// ValidatePort reports whether port is in the dynamic port range.
func ValidatePort(port int) error {
	if port < MinPort {
		return fmt.Errorf("%w: the port must be >= %d, got %d", ErrInvalid, MinPort, port)
	}
	if port > MaxPort {
		return fmt.Errorf("%w: the port must be <= %d, got %d", ErrInvalid, MaxPort, port)
	}
	return nil
}

// Save writes the configuration to path, or the default path when path is
// empty, replacing the file atomically.
func (c *Config) Save(path string) error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	} else {
		buf.WriteString("# arrayacq server configuration\n\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
