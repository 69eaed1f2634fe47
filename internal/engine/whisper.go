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

//go:build whisper

package engine

import (
	"context"
	"errors"
	"fmt"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"
)

// Whisper loads models through the whisper.cpp C API
type Whisper struct{}

// NewWhisper creates the whisper.cpp backed engine
func NewWhisper() *Whisper {
	return &Whisper{}
}

// Load initializes a fresh context from the model file
func (w *Whisper) Load(modelPath string) (Context, error) {
	wctx := whisper.Whisper_init(modelPath)
	if wctx == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, modelPath)
	}
	return &whisperContext{ctx: wctx}, nil
}

type whisperContext struct {
	ctx    *whisper.Context
	closed bool
}

// Full runs inference synchronously. Cancellation is observed when the
// encoder is about to start, which is the only abort hook the library offers.
func (c *whisperContext) Full(ctx context.Context, opts Options, samples []float32) error {
	if c.closed {
		return fmt.Errorf("%w: context already released", ErrInference)
	}

	params := c.ctx.Whisper_full_default_params(whisper.SAMPLING_GREEDY)
	params.SetPrintRealtime(false)
	params.SetPrintProgress(opts.PrintProgress)
	params.SetPrintTimestamps(opts.PrintTimestamps())
	params.SetPrintSpecial(opts.PrintSpecial)
	params.SetTranslate(opts.Translate)
	params.SetThreads(opts.Threads)
	if opts.MaxContext >= 0 {
		params.SetMaxContext(opts.MaxContext)
	}
	params.SetOffset(opts.OffsetMs)
	params.SetDuration(opts.DurationMs)
	params.SetTokenTimestamps(opts.UseTokenTimestamps())
	params.SetTokenThreshold(opts.WordThold)
	params.SetEntropyThold(opts.EntropyThold)
	params.SetMaxSegmentLength(opts.MaxSegmentLength())
	params.SetBeamSize(opts.BeamSize)
	// best_of and logprob_thold have no setter; the library defaults
	// (5 and -1.0) already match Options.

	lang := -1
	if opts.Language != "" && opts.Language != "auto" {
		if lang = c.ctx.Whisper_lang_id(opts.Language); lang < 0 {
			return fmt.Errorf("%w: unsupported language %q", ErrInference, opts.Language)
		}
	}
	if err := params.SetLanguage(lang); err != nil {
		return fmt.Errorf("%w: %v", ErrInference, err)
	}

	encoderBegin := func() bool {
		return ctx.Err() == nil
	}

	var err error
	if opts.Processors > 1 {
		err = c.ctx.Whisper_full_parallel(params, samples, opts.Processors, encoderBegin, nil)
	} else {
		err = c.ctx.Whisper_full(params, samples, encoderBegin, nil, nil)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Join(ErrInference, ctxErr)
		}
		return fmt.Errorf("%w: %v", ErrInference, err)
	}

	return nil
}

func (c *whisperContext) Segments() []Segment {
	n := c.ctx.Whisper_full_n_segments()
	segments := make([]Segment, 0, n)
	for i := 0; i < n; i++ {
		segments = append(segments, Segment{
			Text: c.ctx.Whisper_full_get_segment_text(i),
			T0:   c.ctx.Whisper_full_get_segment_t0(i),
			T1:   c.ctx.Whisper_full_get_segment_t1(i),
		})
	}
	return segments
}

func (c *whisperContext) Close() {
	if c.closed {
		return
	}
	c.ctx.Whisper_free()
	c.closed = true
}
