// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the reqauth command-line application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/reqauth/pkg/config"
	"github.com/stacklok/reqauth/pkg/logger"
)

const configFlag = "config"

// NewRootCmd creates the root command for the reqauth CLI.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:               "reqauth",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		Short:             "reqauth authenticates outgoing HTTP requests",
		Long: `reqauth applies request auth configuration to outgoing HTTP requests.

It supports basic, bearer, API key, WSSE, digest, AWS SigV4 and OAuth2 auth,
caches OAuth2 tokens in a configurable credential store and refreshes them
when they expire. Requests and their auth are described in a YAML auth file.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			logger.Initialize()
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logger.Errorf("Error displaying help: %v", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.Bool(config.KeyDebug, false, "Enable debug logging")
	flags.String(configFlag, "", "Settings file (default $XDG_CONFIG_HOME/reqauth/config.yaml)")
	flags.StringP(config.KeyFile, "f", config.DefaultAuthFile, "Auth file describing requests")
	flags.String(config.KeyStore, "memory", "Credential store: memory, none, file, sqlite, keyring or redis")
	flags.String(config.KeyStorePath, "", "Path for the file or sqlite credential store")
	flags.String(config.KeyRedisAddr, "", "Redis address for the redis credential store")
	flags.String(config.KeyScope, config.DefaultScope, "Scope that isolates cached credentials")
	flags.Bool(config.KeyNoBrowser, false, "Print the OAuth2 authorize URL instead of opening a browser")
	flags.Bool(config.KeyDedupe, false, "Collapse concurrent token requests for the same credentials")
	flags.String(config.KeyEnvFile, "", "Load REQAUTH_* variables from a dotenv file")

	for _, key := range []string{
		config.KeyDebug, config.KeyFile, config.KeyStore, config.KeyStorePath,
		config.KeyRedisAddr, config.KeyScope, config.KeyNoBrowser, config.KeyDedupe,
		config.KeyEnvFile,
	} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			logger.Errorf("Error binding flag %s: %v", key, err)
		}
	}

	rootCmd.AddCommand(
		newTokenCmd(),
		newSendCmd(),
		newCredsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}
