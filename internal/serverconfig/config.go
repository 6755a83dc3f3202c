// Package serverconfig loads the optional nutd.yml overlay consumed by
// cmd/nutd: listen address, port, maxage, and the users-db path. Values set
// here are defaults a CLI flag or environment variable can still override,
// the same layering the teacher's daemon/domain.FileConfig provides.
package serverconfig

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"
)

// DefaultConfigPath is where cmd/nutd looks for an overlay file absent a
// --config-path flag or NUTD_CONFIG environment variable.
const DefaultConfigPath = "/etc/nut/nutd.yml"

// FileConfig mirrors the subset of upsd.conf settings this server honors.
// Pointer fields distinguish "absent from the file" from "explicitly zero",
// the same convention as the teacher's FileConfig.
type FileConfig struct {
	ListenAddress *string            `yaml:"listen_address,omitempty"`
	Port          *int               `yaml:"port,omitempty"`
	MaxAge        *int               `yaml:"maxage,omitempty"`
	UsersDB       *string            `yaml:"users_db,omitempty"`
	Drivers       []FileConfigDriver `yaml:"drivers,omitempty"`
}

// FileConfigDriver names one driver socket this server should shadow.
type FileConfigDriver struct {
	Name        string `yaml:"name"`
	SocketPath  string `yaml:"socket_path"`
	Description string `yaml:"description,omitempty"`
}

// Load reads and parses path. A missing file is not an error: it returns
// (nil, nil) so callers fall back entirely to CLI defaults.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("serverconfig: reading %s: %w", path, err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("serverconfig: parsing %s: %w", path, err)
	}
	return &cfg, nil
}
