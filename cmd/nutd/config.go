package main

import "github.com/networkupstools/nutd/internal/serverconfig"

// applyFileConfig merges nutd.yml values into cli for fields the operator
// didn't already set via flag or environment variable, the same
// CLI/env-over-file layering the teacher's applyFileConfig establishes. A
// field counts as unset while it still holds its built-in default, so a
// flag given explicitly with the default value is also overridden by the
// file.
func applyFileConfig(cfg *serverconfig.FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.ListenAddress != nil && cli.ListenAddr == "0.0.0.0" {
		cli.ListenAddr = *cfg.ListenAddress
	}
	if cfg.Port != nil && cli.Port == 3493 {
		cli.Port = *cfg.Port
	}
	if cfg.MaxAge != nil && cli.MaxAgeSecs == 15 {
		cli.MaxAgeSecs = *cfg.MaxAge
	}
	if cfg.UsersDB != nil && cli.UsersDB == "/etc/nut/upsd.users" {
		cli.UsersDB = *cfg.UsersDB
	}
}

// driverConfig is one configured UPS driver socket to shadow.
type driverConfig struct {
	Name        string
	SocketPath  string
	Description string
}

func driversFromConfig(cfg *serverconfig.FileConfig) []driverConfig {
	if cfg == nil {
		return nil
	}
	out := make([]driverConfig, 0, len(cfg.Drivers))
	for _, d := range cfg.Drivers {
		out = append(out, driverConfig{Name: d.Name, SocketPath: d.SocketPath, Description: d.Description})
	}
	return out
}
