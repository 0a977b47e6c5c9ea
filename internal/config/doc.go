// Package config manages the r2k configuration file.
//
// The file holds named reader profiles (where a reader is attached and the
// settings to push to it) plus the event server settings. It follows
// OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/r2k/config.yaml or $HOME/.config/r2k/config.yaml
//   - macOS: $HOME/.config/r2k/config.yaml
//   - Windows: %LOCALAPPDATA%\r2k\config.yaml
//
// A path given explicitly may end in .toml, in which case the file is read
// and written as TOML with the same keys.
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	profile, err := cfg.Reader("dock-door")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reqs, err := profile.Requests()
//
// Save writes to a temporary file and renames it over the original, so a
// crash never leaves a truncated config behind.
package config
