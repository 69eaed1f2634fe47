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

package engine

import "github.com/loqalabs/loqa-whisper-bridge/internal/config"

// Options mirrors the inference parameter block. Only the request-facing
// fields change per call; the rest keep the defaults below.
type Options struct {
	Threads    int
	Processors int
	OffsetMs   int
	DurationMs int
	MaxContext int // negative keeps the library default
	MaxLen     int
	BestOf     int
	BeamSize   int

	WordThold    float32
	EntropyThold float32
	LogprobThold float32

	Language        string
	Translate       bool
	Diarize         bool
	SpeedUp         bool
	NoTimestamps    bool
	PrintSpecial    bool
	PrintProgress   bool
	TokenTimestamps bool
}

// DefaultOptions returns the fixed decoding defaults
func DefaultOptions() Options {
	return Options{
		Threads:      config.DefaultThreads(),
		Processors:   1,
		MaxContext:   -1,
		BestOf:       5,
		BeamSize:     -1,
		WordThold:    0.01,
		EntropyThold: 2.40,
		LogprobThold: -1.00,
		Language:     "en",
	}
}

// PrintTimestamps is the inverse of NoTimestamps
func (o Options) PrintTimestamps() bool {
	return !o.NoTimestamps
}

// UseTokenTimestamps reports whether per-token timing is needed
func (o Options) UseTokenTimestamps() bool {
	return o.TokenTimestamps || o.MaxLen > 0
}

// MaxSegmentLength is the per-segment character cap handed to the library
func (o Options) MaxSegmentLength() int {
	if o.TokenTimestamps && o.MaxLen == 0 {
		return 60
	}
	return o.MaxLen
}
