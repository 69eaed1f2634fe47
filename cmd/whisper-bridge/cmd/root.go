/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// Package cmd implements the whisper-bridge command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-whisper-bridge/internal/config"
	"github.com/loqalabs/loqa-whisper-bridge/internal/engine"
	"github.com/loqalabs/loqa-whisper-bridge/internal/logging"
	"github.com/loqalabs/loqa-whisper-bridge/internal/server"
)

// newEngine is replaced in tests
var newEngine = func() engine.Engine { return engine.NewWhisper() }

// app holds what the subcommands share after setup
type app struct {
	cfgFile string
	verbose bool

	cfg *config.Config
	srv *server.Server
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "whisper-bridge",
		Short: "Speech-to-text bridge over whisper.cpp",
		Long: `whisper-bridge answers JSON requests with transcriptions of 16 kHz WAV files.

Requests:
  {"@type":"getVersion"}
  {"@type":"getTextFromWavFile","model":"ggml-base.en.bin","audio":"speech.wav"}

The same requests are served by the C shared library (cmd/libwhisper)
and over NATS request/reply (whisper-bridge serve).`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: a.teardown,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (overrides WHISPER_BRIDGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(
		newRequestCmd(a),
		newTranscribeCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line
func Execute() error {
	return NewRootCmd().Execute()
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.cfgFile != "" {
		if err := os.Setenv("WHISPER_BRIDGE_CONFIG", a.cfgFile); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := logging.InitializeWithConfig(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	srv, err := server.New(cfg, newEngine())
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.srv = srv
	return nil
}

func (a *app) teardown(cmd *cobra.Command, args []string) {
	if a.srv != nil {
		if err := a.srv.Close(); err != nil {
			printError(cmd, "closing journal", err)
		}
		a.srv = nil
	}
	logging.Close()
}

func printError(cmd *cobra.Command, msg string, err error) {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s: %v\n", msg, err)
}
