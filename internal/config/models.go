package config

import "time"

const (
	// CurrentVersion is the only config file version understood.
	CurrentVersion = 1

	// MinPort and MaxPort bound the acquisition server port (dynamic range).
	MinPort = 49152
	MaxPort = 65535

	DefaultPort      = 55500
	DefaultAdminAddr = "127.0.0.1:9180"
	DefaultLogLevel  = "info"
)

// Config is the server configuration file.
type Config struct {
	Version int `yaml:"version" toml:"version"`

	// DataFile is the SQLite dataset database. Empty selects a synthetic
	// dataset built from Device.Synthetic.
	DataFile    string `yaml:"data_file,omitempty" toml:"data_file"`
	DatasetName string `yaml:"dataset_name,omitempty" toml:"dataset_name"`

	Port        int           `yaml:"port" toml:"port"`
	Host        string        `yaml:"host,omitempty" toml:"host"`
	AdminAddr   string        `yaml:"admin_addr,omitempty" toml:"admin_addr"` // empty disables the admin API
	LogLevel    string        `yaml:"log_level" toml:"log_level"`
	MDNS        bool          `yaml:"mdns" toml:"mdns"`
	KeepEnabled bool          `yaml:"keep_enabled,omitempty" toml:"keep_enabled"`
	Pause       time.Duration `yaml:"pause,omitempty" toml:"pause"`

	MaxPayloadBytes uint32 `yaml:"max_payload_bytes,omitempty" toml:"max_payload_bytes"`
	MaxElements     uint32 `yaml:"max_elements,omitempty" toml:"max_elements"`

	Device Device `yaml:"device" toml:"device"`
}

// Device configures the simulated acquisition device.
type Device struct {
	MuxChannels       int     `yaml:"mux_channels,omitempty" toml:"mux_channels"`
	SamplingFrequency float32 `yaml:"sampling_frequency" toml:"sampling_frequency"`
	Seed              uint64  `yaml:"seed,omitempty" toml:"seed"`
	// Pause after each acquisition. Negative disables it.
	Pause     time.Duration `yaml:"pause,omitempty" toml:"pause"`
	Synthetic Synthetic     `yaml:"synthetic" toml:"synthetic"`
}

// Synthetic shapes the generated dataset used when no data file is set.
type Synthetic struct {
	Channels        int     `yaml:"channels" toml:"channels"`
	Samples         int     `yaml:"samples" toml:"samples"`
	CenterFrequency float64 `yaml:"center_frequency" toml:"center_frequency"`
}

// Default returns a configuration that serves a synthetic 32-channel dataset.
func Default() *Config {
	return &Config{
		Version:   CurrentVersion,
		Port:      DefaultPort,
		AdminAddr: DefaultAdminAddr,
		LogLevel:  DefaultLogLevel,
		MDNS:      true,
		Device: Device{
			SamplingFrequency: 40e6,
			Synthetic: Synthetic{
				Channels:        32,
				Samples:         1024,
				CenterFrequency: 5e6,
			},
		},
	}
}
