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

// Package audio decodes WAV input into the float PCM the inference engine expects.
package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/riff"
	"github.com/go-audio/wav"
)

const (
	// SampleRate is the only rate the engine accepts
	SampleRate = 16000
	// BitDepth is the only source depth accepted
	BitDepth = 16
	// StdinPath reads the WAV bytes from standard input instead of a file
	StdinPath = "-"

	// streamingDataSize marks a data chunk of unknown length, as written by
	// encoders whose output is a pipe
	streamingDataSize = 0xFFFFFFFF
)

var (
	ErrInvalidWAV            = errors.New("not a valid WAV file")
	ErrUnsupportedChannels   = errors.New("WAV file must be mono or stereo")
	ErrStereoRequired        = errors.New("WAV file must be stereo for diarization")
	ErrUnsupportedSampleRate = fmt.Errorf("WAV file must be %d kHz", SampleRate/1000)
	ErrUnsupportedBitDepth   = fmt.Errorf("WAV file must be %d-bit", BitDepth)
)

// PCM holds decoded samples. Mono is always set; Stereo only when a split was requested.
type PCM struct {
	Mono       []float32
	Stereo     [2][]float32
	Channels   int
	SampleRate int
}

// Duration returns the length of the audio in seconds
func (p *PCM) Duration() float64 {
	if p.SampleRate == 0 {
		return 0
	}
	return float64(len(p.Mono)) / float64(p.SampleRate)
}

// Decoder reads WAV input from files or from its Stdin reader
type Decoder struct {
	Stdin io.Reader
}

// NewDecoder returns a decoder that reads the "-" path from os.Stdin
func NewDecoder() *Decoder {
	return &Decoder{Stdin: os.Stdin}
}

// Decode reads the WAV at path. When stereo is set the input must have two
// channels and the per-channel split is returned alongside the mono mix.
func (d *Decoder) Decode(path string, stereo bool) (*PCM, error) {
	if path == StdinPath {
		if d.Stdin == nil {
			return nil, fmt.Errorf("no stdin reader configured")
		}
		data, err := io.ReadAll(d.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read WAV from stdin: %w", err)
		}
		return decode(bytes.NewReader(data), stereo)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	return decode(f, stereo)
}

func decode(r io.ReadSeeker, stereo bool) (*PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrInvalidWAV
	}

	channels := int(dec.NumChans)
	if channels != 1 && channels != 2 {
		return nil, fmt.Errorf("%w: got %d channels", ErrUnsupportedChannels, channels)
	}
	if stereo && channels != 2 {
		return nil, ErrStereoRequired
	}
	if dec.SampleRate != SampleRate {
		return nil, fmt.Errorf("%w: got %d Hz", ErrUnsupportedSampleRate, dec.SampleRate)
	}
	if dec.BitDepth != BitDepth {
		return nil, fmt.Errorf("%w: got %d-bit", ErrUnsupportedBitDepth, dec.BitDepth)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate PCM data: %w", err)
	}
	if err := limitPCM(dec, r, channels); err != nil {
		return nil, err
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM frames: %w", err)
	}

	frames := len(buf.Data) / channels
	pcm := &PCM{
		Mono:       make([]float32, frames),
		Channels:   channels,
		SampleRate: SampleRate,
	}

	if channels == 1 {
		for i := 0; i < frames; i++ {
			pcm.Mono[i] = float32(buf.Data[i]) / 32768.0
		}
	} else {
		for i := 0; i < frames; i++ {
			pcm.Mono[i] = float32(buf.Data[2*i]+buf.Data[2*i+1]) / 65536.0
		}
	}

	if stereo {
		pcm.Stereo[0] = make([]float32, frames)
		pcm.Stereo[1] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			pcm.Stereo[0][i] = float32(buf.Data[2*i]) / 32768.0
			pcm.Stereo[1][i] = float32(buf.Data[2*i+1]) / 32768.0
		}
	}

	return pcm, nil
}

// limitPCM bounds the data chunk by the bytes actually present. A chunk
// declaring the streaming size, or more than remains, runs to EOF. The
// reader must be positioned at the first PCM byte.
func limitPCM(dec *wav.Decoder, r io.ReadSeeker, channels int) error {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("failed to locate PCM data: %w", err)
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to size PCM data: %w", err)
	}

	// The declared size is the last field of the data chunk header
	var header [4]byte
	if _, err := r.Seek(start-int64(len(header)), io.SeekStart); err != nil {
		return fmt.Errorf("failed to read data chunk size: %w", err)
	}
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return fmt.Errorf("failed to read data chunk size: %w", err)
	}
	declared := int64(binary.LittleEndian.Uint32(header[:]))

	size := end - start
	if declared != streamingDataSize && declared < size {
		size = declared
	}
	size -= size % int64(channels*BitDepth/8)

	dec.PCMSize = int(size)
	dec.PCMChunk = &riff.Chunk{
		ID:   riff.DataFormatID,
		Size: int(size),
		R:    io.LimitReader(r, size),
	}
	return nil
}
