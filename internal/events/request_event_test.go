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

package events

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewRequestEvent(t *testing.T) {
	event := NewRequestEvent()

	if _, err := uuid.Parse(event.UUID); err != nil {
		t.Errorf("UUID %q is not a valid UUID: %v", event.UUID, err)
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
	if !event.Success {
		t.Error("new events should start successful")
	}
	if err := event.IsValid(); err != nil {
		t.Errorf("IsValid() = %v", err)
	}

	if other := NewRequestEvent(); other.UUID == event.UUID {
		t.Error("UUIDs should be unique")
	}
}

func TestRequestEvent_SetAudioMetadata(t *testing.T) {
	event := NewRequestEvent()
	samples := make([]float32, 8000)
	samples[10] = 0.25

	event.SetAudioMetadata(samples, 16000)

	if event.AudioDuration != 0.5 {
		t.Errorf("AudioDuration = %f, want 0.5", event.AudioDuration)
	}
	if event.SampleRate != 16000 {
		t.Errorf("SampleRate = %d, want 16000", event.SampleRate)
	}
	if len(event.AudioHash) != 64 {
		t.Errorf("AudioHash length = %d, want 64", len(event.AudioHash))
	}

	again := NewRequestEvent()
	again.SetAudioMetadata(samples, 16000)
	if again.AudioHash != event.AudioHash {
		t.Error("identical audio should hash identically")
	}

	samples[10] = 0.5
	changed := NewRequestEvent()
	changed.SetAudioMetadata(samples, 16000)
	if changed.AudioHash == event.AudioHash {
		t.Error("different audio should hash differently")
	}
}

func TestRequestEvent_SetAudioMetadata_ZeroRate(t *testing.T) {
	event := NewRequestEvent()
	event.SetAudioMetadata([]float32{1, 2, 3}, 0)
	if event.AudioDuration != 0 {
		t.Errorf("AudioDuration = %f, want 0", event.AudioDuration)
	}
}

func TestRequestEvent_Outcome(t *testing.T) {
	event := NewRequestEvent()
	event.SetRequest("getTextFromWavFile", "ggml-base.en.bin", "jfk.wav", "en")
	event.SetTranscription(" And so my fellow Americans", 2)

	if event.TextLength != 27 || event.Segments != 2 {
		t.Errorf("TextLength/Segments = %d/%d, want 27/2", event.TextLength, event.Segments)
	}

	event.SetError(errors.New("Failed to process audio"))
	event.Timestamp = time.Now().Add(-25 * time.Millisecond)
	event.Finish()

	if event.Success {
		t.Error("Success should be false after SetError")
	}
	if event.ErrorMessage != "Failed to process audio" {
		t.Errorf("ErrorMessage = %q", event.ErrorMessage)
	}
	if event.ProcessingTime < 25 {
		t.Errorf("ProcessingTime = %d, want >= 25", event.ProcessingTime)
	}
	if !strings.Contains(event.String(), "getTextFromWavFile") {
		t.Errorf("String() = %q, want action included", event.String())
	}
}

func TestRequestEvent_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RequestEvent)
	}{
		{name: "missing UUID", mutate: func(e *RequestEvent) { e.UUID = "" }},
		{name: "zero timestamp", mutate: func(e *RequestEvent) { e.Timestamp = time.Time{} }},
		{name: "negative processing time", mutate: func(e *RequestEvent) { e.ProcessingTime = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewRequestEvent()
			tt.mutate(event)
			if err := event.IsValid(); err == nil {
				t.Error("IsValid() expected error")
			}
		})
	}
}
