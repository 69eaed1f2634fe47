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

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-whisper-bridge/internal/bridge"
)

type transcribeFlags struct {
	model         string
	audio         string
	language      string
	translate     bool
	noTimestamps  bool
	threads       int
	specialTokens bool
	maxContext    int
	raw           bool
}

func newTranscribeCmd(a *app) *cobra.Command {
	f := &transcribeFlags{}

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe a WAV file",
		Long: `Transcribe a 16 kHz 16-bit WAV file and print the text.

With timestamps enabled each segment is printed as [start --> end] text.
Use --audio - to read the WAV data from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := f.request(cmd)
			if err != nil {
				return err
			}

			out := a.srv.Handler().Handle(cmd.Context(), body)
			if f.raw {
				fmt.Fprintln(cmd.OutOrStdout(), out)
			}

			resp, err := bridge.DecodeResponse(out)
			if err != nil {
				return err
			}
			if resp.Failed() {
				return errors.New(resp.Error)
			}
			if !f.raw {
				printTranscript(cmd, resp)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.model, "model", "m", "", "Path to the ggml model file")
	flags.StringVarP(&f.audio, "audio", "a", "", "Path to the WAV file, or - for stdin")
	flags.StringVarP(&f.language, "language", "l", bridge.DefaultLanguage, "Spoken language, or auto to detect")
	flags.BoolVar(&f.translate, "translate", false, "Translate to English")
	flags.BoolVar(&f.noTimestamps, "no-timestamps", false, "Do not produce segment timestamps")
	flags.IntVarP(&f.threads, "threads", "t", 0, "Inference threads (default from config)")
	flags.BoolVar(&f.specialTokens, "special-tokens", false, "Include special tokens in the text")
	flags.IntVar(&f.maxContext, "max-context", -1, "Maximum text context tokens (-1 keeps the model default)")
	flags.BoolVar(&f.raw, "json", false, "Print the raw JSON reply")
	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("audio")

	return cmd
}

// request builds the wire request; unset numeric flags are omitted
func (f *transcribeFlags) request(cmd *cobra.Command) (string, error) {
	req := bridge.TranscribeRequest{
		Model:         f.model,
		Audio:         f.audio,
		Language:      f.language,
		Translate:     f.translate,
		NoTimestamps:  f.noTimestamps,
		SpecialTokens: f.specialTokens,
	}
	if cmd.Flags().Changed("threads") {
		req.Threads = &f.threads
	}
	if cmd.Flags().Changed("max-context") {
		req.MaxContext = &f.maxContext
	}

	data, err := json.Marshal(struct {
		Type string `json:"@type"`
		bridge.TranscribeRequest
	}{bridge.ActionTranscribe, req})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	return string(data), nil
}

func printTranscript(cmd *cobra.Command, resp *bridge.Response) {
	w := cmd.OutOrStdout()
	if len(resp.Segments) == 0 {
		if resp.Text != nil {
			fmt.Fprintln(w, *resp.Text)
		}
		return
	}
	for _, seg := range resp.Segments {
		fmt.Fprintf(w, "[%s --> %s] %s\n", formatMillis(seg.Start), formatMillis(seg.End), seg.Text)
	}
}

// formatMillis renders HH:MM:SS.mmm
func formatMillis(ms int64) string {
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}
