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

// Package engine is the boundary to the speech recognition library.
package engine

import (
	"context"
	"errors"
)

var (
	// ErrModelLoad is returned when the library yields no context for a model file
	ErrModelLoad = errors.New("failed to initialize model")
	// ErrInference is returned when the library reports a non-zero status
	ErrInference = errors.New("failed to process audio")
	// ErrEngineUnavailable is returned by builds without the whisper tag
	ErrEngineUnavailable = errors.New("whisper engine disabled (build with -tags whisper to enable)")
)

// Segment is one span of recognized speech. T0 and T1 are in the library's
// native ticks of 10 ms.
type Segment struct {
	Text string
	T0   int64
	T1   int64
}

// TickMillis converts native segment ticks into milliseconds
const TickMillis = 10

// StartMillis returns the segment start in milliseconds
func (s Segment) StartMillis() int64 { return s.T0 * TickMillis }

// EndMillis returns the segment end in milliseconds
func (s Segment) EndMillis() int64 { return s.T1 * TickMillis }

// Engine loads model contexts
type Engine interface {
	Load(modelPath string) (Context, error)
}

// Context is one loaded model instance, owned by a single call.
// Close must be called exactly once.
type Context interface {
	Full(ctx context.Context, opts Options, samples []float32) error
	Segments() []Segment
	Close()
}
