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

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Action tags understood by the bridge
const (
	ActionGetVersion = "getVersion"
	ActionTranscribe = "getTextFromWavFile"
)

// DefaultLanguage is used when a transcribe request omits "language"
const DefaultLanguage = "en"

// ErrInvalidRequest wraps every decoding failure
var ErrInvalidRequest = errors.New("invalid request")

// Request is the closed set of decoded requests. Only this package can
// add variants, so the dispatcher's type switch covers all of them.
type Request interface {
	Action() string
	isRequest()
}

// VersionRequest asks for the bridge version. Extra fields are ignored.
type VersionRequest struct{}

// TranscribeRequest transcribes one WAV file
type TranscribeRequest struct {
	Model         string `json:"model"`
	Audio         string `json:"audio"`
	Language      string `json:"language"`
	Translate     bool   `json:"is_translate"`
	NoTimestamps  bool   `json:"is_no_timestamps"`
	Threads       *int   `json:"threads"`
	SpecialTokens bool   `json:"is_special_tokens"`
	MaxContext    *int   `json:"max_context"`
}

// UnknownRequest carries a tag no variant matched
type UnknownRequest struct {
	Type string
}

func (VersionRequest) Action() string    { return ActionGetVersion }
func (TranscribeRequest) Action() string { return ActionTranscribe }
func (r UnknownRequest) Action() string  { return r.Type }

func (VersionRequest) isRequest()    {}
func (TranscribeRequest) isRequest() {}
func (UnknownRequest) isRequest()    {}

// DecodeRequest parses body once into its request variant
func DecodeRequest(body string) (Request, error) {
	var envelope struct {
		Type *string `json:"@type"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if envelope.Type == nil {
		return nil, fmt.Errorf("%w: missing \"@type\"", ErrInvalidRequest)
	}

	switch *envelope.Type {
	case ActionGetVersion:
		return VersionRequest{}, nil
	case ActionTranscribe:
		return decodeTranscribe(body)
	default:
		return UnknownRequest{Type: *envelope.Type}, nil
	}
}

func decodeTranscribe(body string) (Request, error) {
	var req TranscribeRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("%w: missing \"model\"", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Audio) == "" {
		return nil, fmt.Errorf("%w: missing \"audio\"", ErrInvalidRequest)
	}
	if req.Threads != nil && *req.Threads < 1 {
		return nil, fmt.Errorf("%w: \"threads\" must be at least 1, got %d", ErrInvalidRequest, *req.Threads)
	}
	if req.Language == "" {
		req.Language = DefaultLanguage
	}

	return req, nil
}
