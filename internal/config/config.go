// Package config loads lspkit's ambient, optional configuration:
// default position-encoding preference, request timeouts, and the
// library identity stamped into InitializeParams.ClientInfo (spec.md
// §6). A missing config file is not an error — built-in defaults are a
// valid configuration for every constructor in the module.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Defaults is the library-wide configuration a host program may
// override via lspkit.yaml.
type Defaults struct {
	LibraryName    string   `mapstructure:"library_name"`
	LibraryVersion string   `mapstructure:"library_version"`
	RequestTimeout int      `mapstructure:"request_timeout_seconds"`
	PositionOrder  []string `mapstructure:"position_encoding_order"`
	TCP            TCPConfig `mapstructure:"tcp"`
	Pipe           PipeConfig `mapstructure:"pipe"`
}

// TCPConfig configures the loopback TCP transport.
type TCPConfig struct {
	Port int `mapstructure:"port"` // 0 = ephemeral
}

// PipeConfig configures the named-pipe / unix-socket transport.
type PipeConfig struct {
	NamePrefix string `mapstructure:"name_prefix"`
}

// Load reads an optional lspkit.yaml at path (a directory to search,
// or "" for the current directory), falling back to built-in defaults
// when no file is present, the same defaults-then-override-then-validate
// shape as the teacher's internal/cli/config package.
func Load(path string) (*Defaults, error) {
	v := viper.New()

	v.SetDefault("library_name", "lspkit")
	v.SetDefault("library_version", "0.1.0")
	v.SetDefault("request_timeout_seconds", 30)
	v.SetDefault("position_encoding_order", []string{"utf-32", "utf-8", "utf-16"})
	v.SetDefault("tcp.port", 0)
	v.SetDefault("pipe.name_prefix", "lspkit")

	v.SetConfigName("lspkit")
	v.SetConfigType("yaml")
	if path == "" {
		v.AddConfigPath(".")
	} else {
		v.AddConfigPath(path)
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read lspkit.yaml: %w", err)
		}
	}

	var defaults Defaults
	if err := v.Unmarshal(&defaults); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&defaults); err != nil {
		return nil, err
	}
	return &defaults, nil
}

func validate(d *Defaults) error {
	if d.RequestTimeout <= 0 {
		return fmt.Errorf("config: request_timeout_seconds must be positive, got %d", d.RequestTimeout)
	}
	if len(d.PositionOrder) == 0 {
		return fmt.Errorf("config: position_encoding_order must not be empty")
	}
	for _, enc := range d.PositionOrder {
		switch enc {
		case "utf-8", "utf-16", "utf-32":
		default:
			return fmt.Errorf("config: unrecognized position encoding %q", enc)
		}
	}
	return nil
}
