// Package resources embeds the bundled setup configuration.
package resources

import (
	"embed"
	"io/fs"
)

//go:embed environments/*.yaml scripts/*.yaml setups/*.yaml users/*.yaml
var configFiles embed.FS

// ConfigFS returns the bundled configuration: environments, scripts, setups
// and users directories.
func ConfigFS() fs.FS {
	return configFiles
}
