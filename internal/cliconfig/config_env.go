package cliconfig

import (
	"errors"
	"os"
)

// ApplyEnvConfig applies FCACTL_* environment variables. Explicitly set
// flags win. All malformed variables are reported together.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("catalog", os.Getenv("FCACTL_CATALOG"), &cfg.Catalog)
	s.setString("catalog-file", os.Getenv("FCACTL_CATALOG_FILE"), &cfg.CatalogFile)
	s.setString("params", os.Getenv("FCACTL_PARAMS_FILE"), &cfg.ParamsFile)
	s.setStrings("iface", splitList(os.Getenv("FCACTL_IFACES")), &cfg.Ifaces)
	s.setString("log-level", os.Getenv("FCACTL_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("log-format", os.Getenv("FCACTL_LOG_FORMAT"), &cfg.LogFormat)
	s.setString("log-file", os.Getenv("FCACTL_LOG_FILE"), &cfg.LogFile)

	return errors.Join(
		s.setBoolFromString("link-up", os.Getenv("FCACTL_LINK_UP"), &cfg.LinkUp),
		s.setDuration("interval", os.Getenv("FCACTL_INTERVAL"), &cfg.Interval),
		s.setFloatFromString("steer", os.Getenv("FCACTL_STEER"), &cfg.Steer),
		s.setIntFromString("log-max-size", os.Getenv("FCACTL_LOG_MAX_SIZE_MB"), &cfg.LogMaxSizeMB),
		s.setIntFromString("log-max-backups", os.Getenv("FCACTL_LOG_MAX_BACKUPS"), &cfg.LogMaxBackups),
		s.setBoolFromString("log-frames", os.Getenv("FCACTL_LOG_FRAMES"), &cfg.LogFrames),
	)
}
