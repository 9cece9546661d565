package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matspina/screen-play-wright/core/command"
)

// absTestsDir makes dir absolute so descriptor tests paths such as
// "/tests/demo-site/" match it. An empty dir stays empty.
func absTestsDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	return filepath.Abs(dir)
}

func getCmdSetup(gs *globalState) *cobra.Command {
	var (
		testsDir string
		only     string
	)

	setupCmd := &cobra.Command{
		Use:   "setup",
		Short: "Save the login state of the sites the tests need",
		Long: `Save the login state of every site needed by the tests under --tests-dir.

Setups run in parallel up to --workers at a time. A site whose state is still
within its TTL is not signed in again. Pass an empty --tests-dir to run every
registered setup, or --only to run a single one regardless of the tests.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), gs, func(a *app) error {
				if only != "" {
					a.reporter.Follow(only)
					return a.coordinator.Dispatch(cmd.Context(), command.NewRunSetup(only))
				}

				dir, err := absTestsDir(testsDir)
				if err != nil {
					return err
				}
				return a.coordinator.Dispatch(cmd.Context(), &command.RunGlobalSetup{TestsDir: dir})
			})
		},
	}

	setupCmd.Flags().StringVar(&testsDir, "tests-dir", "tests", "directory scanned for tests that need a login state")
	setupCmd.Flags().StringVar(&only, "only", "", "identity of a single setup to run, e.g. \"DEMO SITESample Page Test\"")
	return setupCmd
}

func getCmdList(gs *globalState) *cobra.Command {
	var testsDir string

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the registered setups and whether the tests need them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), gs, func(a *app) error {
				dir, err := absTestsDir(testsDir)
				if err != nil {
					return err
				}
				setups, err := a.coordinator.ListSetups(cmd.Context(), &command.ListSetups{TestsDir: dir})
				if err != nil {
					return err
				}
				return a.reporter.PrintSetups(setups)
			})
		},
	}

	listCmd.Flags().StringVar(&testsDir, "tests-dir", "tests", "directory scanned for tests that need a login state")
	return listCmd
}

func getCmdStatus(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the TTL cache entry of every setup in the selected environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), gs, func(a *app) error {
				entries, err := a.coordinator.CacheStatus(cmd.Context(), &command.ShowCacheStatus{})
				if err != nil {
					return err
				}
				return a.reporter.PrintCacheStatus(entries, a.clock.Now())
			})
		},
	}
}

