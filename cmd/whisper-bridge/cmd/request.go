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

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newRequestCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "request [json]",
		Short: "Send one raw JSON request and print the reply",
		Long: `Send one raw JSON request and print the reply.

The request is read from the argument, from --file, or from stdin.

Examples:
  whisper-bridge request '{"@type":"getVersion"}'
  whisper-bridge request --file req.json
  echo '{"@type":"getVersion"}' | whisper-bridge request`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readBody(cmd, args, file)
			if err != nil {
				return err
			}

			reply := a.srv.Handler().Handle(cmd.Context(), body)
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the request from a file")
	return cmd
}

func readBody(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read request file: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read request from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
}
