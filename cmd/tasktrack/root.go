// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/tasktrack/internal/config"
	"github.com/holomush/tasktrack/internal/xdg"
)

// rootOptions holds the global flags available to all subcommands.
type rootOptions struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the root command for the tasktrack CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *ServeDeps) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tasktrack",
		Short: "tasktrack - a to-do API with accounts and password recovery",
		Long: `tasktrack serves a JSON API for personal task lists. Accounts are
created with a username, email and password; sessions are bearer tokens;
forgotten passwords are recovered through a single-use emailed link.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file path (YAML)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded when present")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(opts, deps))
	cmd.AddCommand(newMigrateCmd(opts, deps))

	return cmd
}

// loadConfig layers defaults, the config file, the environment and the
// command's flags. Without --config the XDG config file is used when present.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	configFile := opts.configFile
	if configFile == "" {
		found, err := xdg.DefaultConfigFile()
		if err != nil {
			return nil, err
		}
		configFile = found
	}
	return config.Load(config.LoadOptions{
		ConfigFile: configFile,
		EnvFile:    opts.envFile,
		Flags:      cmd.Flags(),
	})
}
