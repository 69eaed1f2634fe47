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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// RequestEvent records the outcome of one bridge call with full traceability
type RequestEvent struct {
	// Core identification
	UUID      string    `json:"uuid" db:"uuid"`
	Action    string    `json:"action" db:"action"`
	Timestamp time.Time `json:"timestamp" db:"started_at"`

	// Request parameters
	Model    string `json:"model,omitempty" db:"model"`
	Audio    string `json:"audio,omitempty" db:"audio"`
	Language string `json:"language,omitempty" db:"language"`

	// Audio metadata
	AudioHash     string  `json:"audio_hash,omitempty" db:"audio_hash"`
	AudioDuration float64 `json:"audio_duration" db:"audio_duration"`
	SampleRate    int     `json:"sample_rate" db:"sample_rate"`

	// Processing results
	Segments       int    `json:"segments" db:"segments"`
	TextLength     int    `json:"text_length" db:"text_length"`
	ProcessingTime int64  `json:"processing_time_ms" db:"duration_ms"`
	Success        bool   `json:"success" db:"success"`
	ErrorMessage   string `json:"error_message,omitempty" db:"error_message"`
}

// NewRequestEvent creates a new RequestEvent with generated UUID and current timestamp
func NewRequestEvent() *RequestEvent {
	return &RequestEvent{
		UUID:      uuid.NewString(),
		Timestamp: time.Now(),
		Success:   true,
	}
}

// SetRequest records which action ran and on what inputs
func (re *RequestEvent) SetRequest(action, model, audio, language string) {
	re.Action = action
	re.Model = model
	re.Audio = audio
	re.Language = language
}

// SetAudioMetadata sets audio-related metadata for the event
func (re *RequestEvent) SetAudioMetadata(samples []float32, sampleRate int) {
	re.AudioHash = hashSamples(samples)
	re.SampleRate = sampleRate
	if sampleRate > 0 {
		re.AudioDuration = float64(len(samples)) / float64(sampleRate)
	}
}

// SetTranscription records the size of the result; the text itself is not kept
func (re *RequestEvent) SetTranscription(text string, segments int) {
	re.TextLength = len(text)
	re.Segments = segments
}

// SetError marks the event as failed with an error message
func (re *RequestEvent) SetError(err error) {
	re.Success = false
	if err != nil {
		re.ErrorMessage = err.Error()
	}
}

// Finish stamps the processing time
func (re *RequestEvent) Finish() {
	re.ProcessingTime = time.Since(re.Timestamp).Milliseconds()
}

// hashSamples generates a SHA-256 hash of the PCM data for duplicate detection
func hashSamples(samples []float32) string {
	hasher := sha256.New()

	buf := make([]byte, 4)
	for _, sample := range samples {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(sample))
		hasher.Write(buf)
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// IsValid performs basic validation on the request event
func (re *RequestEvent) IsValid() error {
	if re.UUID == "" {
		return fmt.Errorf("UUID is required")
	}

	if re.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}

	if re.ProcessingTime < 0 {
		return fmt.Errorf("processing time must not be negative")
	}

	return nil
}

// String returns a human-readable representation of the request event
func (re *RequestEvent) String() string {
	return fmt.Sprintf("RequestEvent{UUID: %s, Action: %s, Segments: %d, Success: %t}",
		re.UUID, re.Action, re.Segments, re.Success)
}
