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

// Package enginetest provides an in-memory engine for exercising callers
// without the speech recognition library.
package enginetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/loqalabs/loqa-whisper-bridge/internal/engine"
)

// Engine is a fake engine. Segments is called per Full to produce results,
// which lets tests derive output from the samples they passed in.
type Engine struct {
	// FailLoad makes Load return engine.ErrModelLoad
	FailLoad bool
	// FailFull makes Full return engine.ErrInference
	FailFull bool
	// PanicFull makes Full panic with the given value
	PanicFull any
	// Segments builds the result for a call
	Segments func(opts engine.Options, samples []float32) []engine.Segment

	open   atomic.Int64
	loads  atomic.Int64
	mu     sync.Mutex
	seen   []engine.Options
	models []string
}

// Load returns a tracked context
func (e *Engine) Load(modelPath string) (engine.Context, error) {
	e.loads.Add(1)
	if e.FailLoad {
		return nil, fmt.Errorf("%w: %s", engine.ErrModelLoad, modelPath)
	}

	e.mu.Lock()
	e.models = append(e.models, modelPath)
	e.mu.Unlock()

	e.open.Add(1)
	return &fakeContext{engine: e}, nil
}

// Open reports contexts loaded but not yet closed
func (e *Engine) Open() int64 { return e.open.Load() }

// Loads reports the number of Load calls
func (e *Engine) Loads() int64 { return e.loads.Load() }

// Options returns the options seen by Full, in call order
func (e *Engine) Options() []engine.Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Options(nil), e.seen...)
}

// Models returns the model paths loaded, in call order
func (e *Engine) Models() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.models...)
}

type fakeContext struct {
	engine   *Engine
	segments []engine.Segment
	closed   atomic.Bool
}

func (c *fakeContext) Full(ctx context.Context, opts engine.Options, samples []float32) error {
	c.engine.mu.Lock()
	c.engine.seen = append(c.engine.seen, opts)
	c.engine.mu.Unlock()

	if c.engine.PanicFull != nil {
		panic(c.engine.PanicFull)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", engine.ErrInference, err)
	}
	if c.engine.FailFull {
		return fmt.Errorf("%w: status -1", engine.ErrInference)
	}
	if c.engine.Segments != nil {
		c.segments = c.engine.Segments(opts, samples)
	}
	return nil
}

func (c *fakeContext) Segments() []engine.Segment {
	return c.segments
}

func (c *fakeContext) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.engine.open.Add(-1)
	}
}
