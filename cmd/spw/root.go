package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matspina/screen-play-wright/infrastructure/config"
	"github.com/matspina/screen-play-wright/infrastructure/logging"
)

// rootFlags override the environment configuration.
type rootFlags struct {
	env       string
	workers   int
	configDir string
	engine    string
}

// globalState is shared by all subcommands of a process.
type globalState struct {
	lookup config.LookupFunc
	flags  rootFlags

	cfg      *config.Config
	logger   *slog.Logger
	closeLog func() error
}

func newGlobalState(lookup config.LookupFunc) *globalState {
	return &globalState{lookup: lookup}
}

func newRootCommand(gs *globalState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spw",
		Short: "Save the login state of every site before the tests run",
		Long: `spw runs the global setup of a test run: it signs in to every site the
discovered tests need and saves the browser session so tests start logged in.

Settings are read from SPW_* environment variables; flags override them.`,
		SilenceUsage:      true,
		PersistentPreRunE: gs.persistentPreRunE,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if gs.closeLog != nil {
				return gs.closeLog()
			}
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&gs.flags.env, "env", "e", "", "environment selection, e.g. qa or uat2 (SPW_ENV)")
	flags.IntVarP(&gs.flags.workers, "workers", "w", 0, "setups running at the same time (SPW_WORKERS)")
	flags.StringVar(&gs.flags.configDir, "config-dir", "", "directory with environments, scripts, setups and users (SPW_CONFIG_DIR)")
	flags.StringVar(&gs.flags.engine, "engine", "", "browser driver: chromedp or playwright (SPW_ENGINE)")

	cmd.AddCommand(
		getCmdSetup(gs),
		getCmdList(gs),
		getCmdStatus(gs),
	)
	return cmd
}

func (gs *globalState) persistentPreRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(gs.lookup)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("env") {
		cfg.Env = gs.flags.env
	}
	if flags.Changed("workers") {
		cfg.Workers = max(gs.flags.workers, 1)
	}
	if flags.Changed("config-dir") {
		cfg.ConfigDir = gs.flags.configDir
	}
	if flags.Changed("engine") {
		switch gs.flags.engine {
		case config.EngineChromeDP, config.EnginePlaywright:
			cfg.Engine = gs.flags.engine
		default:
			return fmt.Errorf("unknown browser engine %q", gs.flags.engine)
		}
	}

	logger, closeLog, err := logging.Setup(logging.ConfigFor(cfg.Debug, cfg.LogDir))
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	gs.cfg = cfg
	gs.logger = logger
	gs.closeLog = closeLog
	return nil
}
