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
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent requests from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			journal := a.srv.Journal()
			if journal == nil {
				return errors.New("request journal disabled; set WHISPER_BRIDGE_JOURNAL_PATH")
			}

			recent, err := journal.Recent(limit)
			if err != nil {
				return err
			}
			if len(recent) == 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "No requests recorded in %s\n", a.srv.JournalPath())
				return nil
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				for _, event := range recent {
					if err := enc.Encode(event); err != nil {
						return err
					}
				}
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STARTED\tACTION\tAUDIO\tSEGMENTS\tMS\tRESULT")
			for _, event := range recent {
				result := "ok"
				if !event.Success {
					result = event.ErrorMessage
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					event.Timestamp.Local().Format(time.DateTime),
					event.Action, event.Audio, event.Segments, event.ProcessingTime, result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON object per row")
	return cmd
}
