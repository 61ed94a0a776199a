package main

import (
	"errors"
	"fmt"

	"github.com/lixenwraith/pset"
	"github.com/lixenwraith/pset/hcalsim"
	"github.com/lixenwraith/pset/internal/appconfig"
	"github.com/lixenwraith/pset/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

// app carries the state shared by all commands of one invocation.
type app struct {
	configFile string
	overrides  []string

	settings appconfig.Settings
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}

	root := &cobra.Command{
		Use:           "psetcfg",
		Short:         "Inspect and check parameter set configurations.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Sync(a.logger)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "settings file (default: discovered psetcfg.{toml,yaml,yml,json})")
	root.PersistentFlags().StringArrayVar(&a.overrides, "set", nil, "override a setting, e.g. --set log.level=debug (repeatable)")

	root.AddCommand(
		newDumpCmd(a),
		newIDCmd(a),
		newCheckCmd(a),
		newBuiltinCmd(),
	)
	return root
}

// setup loads settings and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	file := a.configFile
	if file == "" {
		file = appconfig.Discover(appconfig.DefaultDiscoveryOptions("psetcfg"))
	}

	settings, err := appconfig.LoadSettings(file, a.overrides)
	if err != nil && (a.configFile != "" || !errors.Is(err, appconfig.ErrConfigNotFound)) {
		return err
	}
	a.settings = settings

	logger, err := logging.New(a.settings.Log, zapcore.AddSync(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	a.logger = logger
	a.logger.Debug("Settings loaded", zap.String("file", file), zap.String("shadow", a.settings.Shadow))
	return nil
}

// loadRegistry loads path, or the built-in configuration when path is empty,
// into a sealed registry.
func (a *app) loadRegistry(path string) (*pset.Registry, error) {
	policy, err := a.settings.ShadowPolicy()
	if err != nil {
		return nil, err
	}

	reg := pset.NewRegistry().WithLogger(a.logger)
	opt := pset.WithLoadShadowPolicy(policy)
	if path == "" {
		err = hcalsim.LoadDefault(reg, opt)
	} else {
		err = pset.LoadHCLFile(path, reg, opt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	reg.Seal()
	return reg, nil
}

func fileArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
