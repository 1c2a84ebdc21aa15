package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/pbassut/canbus/dbc"
	"github.com/pbassut/canbus/fca"
	"github.com/pbassut/canbus/internal/cliconfig"
)

var exampleUsage = strings.TrimSpace(`
  fcactl catalog --catalog giorgio
  fcactl decode 1F6#80000316
  fcactl encode LKAS_COMMAND STEERING_TORQUE=120 LKAS_REQUEST_BIT=1 COUNTER=3
  fcactl replay candump-2024-05-01.log --iface can0,can1
  fcactl run --iface can0,can1 --link-up
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app carries the resolved configuration shared by every subcommand.
type app struct {
	cfg     cliconfig.Config
	cfgPath string

	logger zerolog.Logger
	closer io.Closer
	cat    *dbc.Catalog
	params fca.Params
}

// load resolves flags > env > file > defaults, then the logger, catalog and
// vehicle parameters.
func (a *app) load(cmd *cobra.Command) error {
	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}
	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}

	logger, closer, err := cliconfig.NewLogger(a.cfg, os.Stderr)
	if err != nil {
		return err
	}
	a.logger, a.closer = logger, closer

	if a.cfg.CatalogFile != "" {
		a.cat, err = dbc.LoadCatalog(a.cfg.CatalogFile)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
	} else {
		var ok bool
		if a.cat, ok = fca.CatalogByName(a.cfg.Catalog); !ok {
			return fmt.Errorf("unknown catalog %q (built in: fastback, giorgio)", a.cfg.Catalog)
		}
	}

	a.params = fca.DefaultParams()
	if a.cfg.ParamsFile != "" {
		if a.params, err = fca.LoadParams(a.cfg.ParamsFile); err != nil {
			return fmt.Errorf("load params: %w", err)
		}
	}
	a.logger.Debug().
		Str("catalog", a.cat.Name()).
		Interface("config", a.cfg).
		Msg("configuration")
	return nil
}

func (a *app) close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "fcactl",
		Short:         "Decode, encode and drive FCA (Fiat) CAN traffic",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "config file (default $HOME/.fcactl/config.toml)")
	pf.StringVar(&a.cfg.Catalog, "catalog", a.cfg.Catalog, "built-in catalog: fastback or giorgio")
	pf.StringVar(&a.cfg.CatalogFile, "catalog-file", "", "YAML catalog replacing the built-in one")
	pf.StringVar(&a.cfg.ParamsFile, "params", "", "TOML vehicle parameter overrides")
	pf.StringSliceVar(&a.cfg.Ifaces, "iface", a.cfg.Ifaces, "CAN interfaces; position is the bus index")
	pf.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "trace, debug, info, warn or error")
	pf.StringVar(&a.cfg.LogFormat, "log-format", a.cfg.LogFormat, "console or json")
	pf.StringVar(&a.cfg.LogFile, "log-file", "", "also write JSON logs to this rotating file")
	pf.IntVar(&a.cfg.LogMaxSizeMB, "log-max-size", a.cfg.LogMaxSizeMB, "log file size in MB before rotation")
	pf.IntVar(&a.cfg.LogMaxBackups, "log-max-backups", a.cfg.LogMaxBackups, "rotated log files to keep")

	root.AddCommand(
		newCatalogCmd(a),
		newDecodeCmd(a),
		newEncodeCmd(a),
		newChecksumCmd(a),
		newReplayCmd(a),
		newRunCmd(a),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
