package cliconfig

import (
	"bytes"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config with TOML friendly types. Pointers mark values
// whose zero is meaningful.
type FileConfig struct {
	Catalog     string   `toml:"catalog"`
	CatalogFile string   `toml:"catalog_file"`
	ParamsFile  string   `toml:"params_file"`
	Ifaces      []string `toml:"ifaces"`
	LinkUp      *bool    `toml:"link_up"`
	Interval    string   `toml:"interval"`
	Steer       *float64 `toml:"steer"`

	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogFile       string `toml:"log_file"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
	LogFrames     *bool  `toml:"log_frames"`
}

// LoadFileConfig reads and parses a TOML config file. Unknown keys are
// rejected.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	dec := toml.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.fcactl/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".fcactl", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("catalog", fc.Catalog, &cfg.Catalog)
	s.setString("catalog-file", fc.CatalogFile, &cfg.CatalogFile)
	s.setString("params", fc.ParamsFile, &cfg.ParamsFile)
	s.setStrings("iface", fc.Ifaces, &cfg.Ifaces)
	s.setBool("link-up", fc.LinkUp, &cfg.LinkUp)
	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}
	s.setFloat("steer", fc.Steer, &cfg.Steer)

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("log-format", fc.LogFormat, &cfg.LogFormat)
	s.setString("log-file", fc.LogFile, &cfg.LogFile)
	s.setInt("log-max-size", fc.LogMaxSizeMB, &cfg.LogMaxSizeMB)
	s.setInt("log-max-backups", fc.LogMaxBackups, &cfg.LogMaxBackups)
	s.setBool("log-frames", fc.LogFrames, &cfg.LogFrames)
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
