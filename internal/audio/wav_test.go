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

package audio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/loqa-whisper-bridge/internal/audio/audiotest"
)

func TestDecode_Mono(t *testing.T) {
	path := audiotest.WriteWAV(t, "mono.wav", 16000, 16, 1, []int{0, 16384, -16384, 32767, -32768})

	pcm, err := NewDecoder().Decode(path, false)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	want := []float32{0, 0.5, -0.5, 32767.0 / 32768.0, -1}
	if len(pcm.Mono) != len(want) {
		t.Fatalf("len(Mono) = %d, want %d", len(pcm.Mono), len(want))
	}
	for i := range want {
		if pcm.Mono[i] != want[i] {
			t.Errorf("Mono[%d] = %f, want %f", i, pcm.Mono[i], want[i])
		}
	}
	if pcm.Channels != 1 || pcm.SampleRate != SampleRate {
		t.Errorf("Channels/SampleRate = %d/%d, want 1/%d", pcm.Channels, pcm.SampleRate, SampleRate)
	}
	if pcm.Stereo[0] != nil || pcm.Stereo[1] != nil {
		t.Error("Stereo split should be empty when not requested")
	}
}

func TestDecode_StereoMixdown(t *testing.T) {
	// frames: (16384, 16384), (32767, -32768)
	path := audiotest.WriteWAV(t, "stereo.wav", 16000, 16, 2, []int{16384, 16384, 32767, -32768})

	pcm, err := NewDecoder().Decode(path, false)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(pcm.Mono) != 2 {
		t.Fatalf("len(Mono) = %d, want 2", len(pcm.Mono))
	}
	if pcm.Mono[0] != 0.5 {
		t.Errorf("Mono[0] = %f, want 0.5", pcm.Mono[0])
	}
	if pcm.Mono[1] != -1.0/65536.0 {
		t.Errorf("Mono[1] = %g, want %g", pcm.Mono[1], -1.0/65536.0)
	}
}

func TestDecode_StereoSplit(t *testing.T) {
	path := audiotest.WriteWAV(t, "stereo.wav", 16000, 16, 2, []int{16384, -16384, 0, 8192})

	pcm, err := NewDecoder().Decode(path, true)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	left := []float32{0.5, 0}
	right := []float32{-0.5, 0.25}
	for i := range left {
		if pcm.Stereo[0][i] != left[i] {
			t.Errorf("Stereo[0][%d] = %f, want %f", i, pcm.Stereo[0][i], left[i])
		}
		if pcm.Stereo[1][i] != right[i] {
			t.Errorf("Stereo[1][%d] = %f, want %f", i, pcm.Stereo[1][i], right[i])
		}
	}
}

func TestDecode_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		stereo  bool
		wantErr error
	}{
		{
			name: "wrong sample rate",
			path: func(t *testing.T) string {
				return audiotest.WriteWAV(t, "44k.wav", 44100, 16, 1, make([]int, 441))
			},
			wantErr: ErrUnsupportedSampleRate,
		},
		{
			name: "wrong bit depth",
			path: func(t *testing.T) string {
				return audiotest.WriteWAV(t, "8bit.wav", 16000, 8, 1, make([]int, 160))
			},
			wantErr: ErrUnsupportedBitDepth,
		},
		{
			name: "too many channels",
			path: func(t *testing.T) string {
				return audiotest.WriteWAV(t, "quad.wav", 16000, 16, 4, make([]int, 640))
			},
			wantErr: ErrUnsupportedChannels,
		},
		{
			name: "stereo requested on mono",
			path: func(t *testing.T) string {
				return audiotest.Silence(t, "mono.wav", 10)
			},
			stereo:  true,
			wantErr: ErrStereoRequired,
		},
		{
			name: "not a wav",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "notes.txt")
				if err := os.WriteFile(p, []byte("definitely not RIFF"), 0o600); err != nil {
					t.Fatal(err)
				}
				return p
			},
			wantErr: ErrInvalidWAV,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm, err := NewDecoder().Decode(tt.path(t), tt.stereo)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
			}
			if pcm != nil {
				t.Error("Decode() should not return partial PCM on error")
			}
		})
	}
}

func TestDecode_MissingFile(t *testing.T) {
	_, err := NewDecoder().Decode(filepath.Join(t.TempDir(), "missing.wav"), false)
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestDecode_Stdin(t *testing.T) {
	path := audiotest.Silence(t, "silence.wav", 250)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	dec := &Decoder{Stdin: bytes.NewReader(data)}
	pcm, err := dec.Decode(StdinPath, false)
	if err != nil {
		t.Fatalf("Decode(stdin) error = %v", err)
	}

	if len(pcm.Mono) != 4000 {
		t.Errorf("len(Mono) = %d, want 4000", len(pcm.Mono))
	}
	if d := pcm.Duration(); d != 0.25 {
		t.Errorf("Duration() = %f, want 0.25", d)
	}
}

func TestDecode_StdinNotConfigured(t *testing.T) {
	dec := &Decoder{}
	if _, err := dec.Decode(StdinPath, false); err == nil {
		t.Fatal("expected error without stdin reader")
	}
}

func ramp(n int) []int16 {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}
	return samples
}

func TestDecode_StreamingHeader(t *testing.T) {
	samples := ramp(1600)
	data := audiotest.StreamingWAV(samples)

	t.Run("stdin", func(t *testing.T) {
		pcm, err := (&Decoder{Stdin: bytes.NewReader(data)}).Decode(StdinPath, false)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if len(pcm.Mono) != len(samples) {
			t.Fatalf("len(Mono) = %d, want %d", len(pcm.Mono), len(samples))
		}
		for _, i := range []int{0, 1, 999, 1599} {
			if want := float32(samples[i]) / 32768.0; pcm.Mono[i] != want {
				t.Errorf("Mono[%d] = %f, want %f", i, pcm.Mono[i], want)
			}
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "piped.wav")
		if err := os.WriteFile(path, data, 0600); err != nil {
			t.Fatal(err)
		}
		pcm, err := NewDecoder().Decode(path, false)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if len(pcm.Mono) != len(samples) {
			t.Errorf("len(Mono) = %d, want %d", len(pcm.Mono), len(samples))
		}
	})
}

func TestDecode_DeclaredSizes(t *testing.T) {
	samples := ramp(100)
	list := append([]byte("LIST"), 4, 0, 0, 0, 'I', 'N', 'F', 'O')

	tests := []struct {
		name      string
		channels  int
		dataSize  uint32
		trailer   []byte
		wantFrame int
	}{
		{name: "exact", channels: 1, dataSize: 200, wantFrame: 100},
		{name: "larger_than_present", channels: 1, dataSize: 100000, wantFrame: 100},
		{name: "chunk_after_data", channels: 1, dataSize: 200, trailer: list, wantFrame: 100},
		{name: "smaller_than_present", channels: 1, dataSize: 120, wantFrame: 60},
		{name: "streaming_odd_tail", channels: 1, dataSize: audiotest.UnknownSize, trailer: []byte{0x7f}, wantFrame: 100},
		{name: "streaming_stereo", channels: 2, dataSize: audiotest.UnknownSize, wantFrame: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := audiotest.RawWAV(tt.channels, samples, audiotest.UnknownSize, tt.dataSize, tt.trailer)

			pcm, err := (&Decoder{Stdin: bytes.NewReader(data)}).Decode(StdinPath, false)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if len(pcm.Mono) != tt.wantFrame {
				t.Errorf("len(Mono) = %d, want %d", len(pcm.Mono), tt.wantFrame)
			}
		})
	}
}
