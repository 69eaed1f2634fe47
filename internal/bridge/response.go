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
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Reply is the closed set of responses the bridge emits
type Reply interface {
	isReply()
}

// VersionReply answers getVersion
type VersionReply struct {
	Type    string `json:"@type"`
	Version string `json:"version"`
}

// TranscribeReply answers a successful transcription. Segments is always an
// array and stays empty when timestamps were suppressed.
type TranscribeReply struct {
	Type     string    `json:"@type"`
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// ErrorReply is the only shape returned on failure
type ErrorReply struct {
	Error string `json:"error"`
}

// Segment is one timed span of text. Start and End are milliseconds.
type Segment struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

func (VersionReply) isReply()    {}
func (TranscribeReply) isReply() {}
func (ErrorReply) isReply()      {}

// Fixed failure messages
const (
	MsgModelLoad  = "Failed to initialize model"
	MsgReadAudio  = "Failed to read audio file"
	MsgProcess    = "Failed to process audio"
	msgEncodeFail = `{"error":"failed to encode response"}`
)

// UnknownActionMessage names the unmatched tag
func UnknownActionMessage(tag string) string {
	return "Unknown action: " + tag
}

// EncodeReply serializes a reply. It never fails: encoding problems are
// reported as an error reply instead.
func EncodeReply(reply Reply) string {
	if tr, ok := reply.(TranscribeReply); ok && tr.Segments == nil {
		tr.Segments = []Segment{}
		reply = tr
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(reply); err != nil {
		return msgEncodeFail
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Response is the union view of every reply, for callers that decode them
type Response struct {
	Type     string    `json:"@type,omitempty"`
	Version  string    `json:"version,omitempty"`
	Error    string    `json:"error,omitempty"`
	Text     *string   `json:"text,omitempty"`
	Segments []Segment `json:"segments,omitempty"`
}

// DecodeResponse parses a serialized reply
func DecodeResponse(data string) (*Response, error) {
	var resp Response
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// Failed reports whether the response carries an error
func (r *Response) Failed() bool {
	return r.Error != ""
}
