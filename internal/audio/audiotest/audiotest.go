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

// Package audiotest writes WAV fixtures for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes interleaved integer samples into a PCM WAV file under t.TempDir()
func WriteWAV(t testing.TB, name string, sampleRate, bitDepth, channels int, samples []int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("failed to finalize %s: %v", path, err)
	}

	return path
}

// Silence writes a mono 16 kHz 16-bit file of the given length in milliseconds
func Silence(t testing.TB, name string, ms int) string {
	t.Helper()
	return WriteWAV(t, name, 16000, 16, 1, make([]int, 16*ms))
}

// UnknownSize is the RIFF and data chunk size written by encoders streaming to a pipe
const UnknownSize = 0xFFFFFFFF

// RawWAV builds 16 kHz 16-bit PCM WAV bytes by hand so tests can control the
// declared sizes. dataSize is written as the data chunk size; trailer is
// appended after the samples.
func RawWAV(channels int, samples []int16, riffSize, dataSize uint32, trailer []byte) []byte {
	var buf bytes.Buffer
	le := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	le(riffSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	le(uint32(16))
	le(uint16(1)) // PCM
	le(uint16(channels))
	le(uint32(16000))
	le(uint32(16000 * channels * 2))
	le(uint16(channels * 2))
	le(uint16(16))

	buf.WriteString("data")
	le(dataSize)
	le(samples)
	buf.Write(trailer)

	return buf.Bytes()
}

// StreamingWAV builds a mono WAV whose sizes are unknown, as piped encoder output is
func StreamingWAV(samples []int16) []byte {
	return RawWAV(1, samples, UnknownSize, UnknownSize, nil)
}
