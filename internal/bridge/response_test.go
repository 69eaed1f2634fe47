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
	"reflect"
	"strings"
	"testing"
)

func TestEncodeReply_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		reply Reply
		want  string
	}{
		{
			name:  "version",
			reply: VersionReply{Type: ActionGetVersion, Version: Version},
			want:  `{"@type":"getVersion","version":"1.0.0"}`,
		},
		{
			name:  "error",
			reply: ErrorReply{Error: UnknownActionMessage("foo")},
			want:  `{"error":"Unknown action: foo"}`,
		},
		{
			name:  "transcription without segments keeps an empty array",
			reply: TranscribeReply{Type: ActionTranscribe, Text: " hi"},
			want:  `{"@type":"getTextFromWavFile","text":" hi","segments":[]}`,
		},
		{
			name: "html characters are not escaped",
			reply: TranscribeReply{
				Type:     ActionTranscribe,
				Text:     "<b>&</b>",
				Segments: []Segment{{Text: "<b>&</b>", Start: 0, End: 1000}},
			},
			want: `{"@type":"getTextFromWavFile","text":"<b>&</b>","segments":[{"text":"<b>&</b>","start":0,"end":1000}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeReply(tt.reply); got != tt.want {
				t.Errorf("EncodeReply() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEncodeReply_InvalidUTF8(t *testing.T) {
	// Segment boundaries can split a multi-byte character
	got := EncodeReply(TranscribeReply{Type: ActionTranscribe, Text: "caf\xc3"})
	if !strings.HasPrefix(got, `{"@type":"getTextFromWavFile"`) {
		t.Fatalf("EncodeReply() = %s, want a transcription reply", got)
	}
	if _, err := DecodeResponse(got); err != nil {
		t.Errorf("encoded reply should stay valid JSON: %v", err)
	}
}

func TestReplyRoundTrip(t *testing.T) {
	reply := TranscribeReply{
		Type: ActionTranscribe,
		Text: " And so my fellow Americans, ask not",
		Segments: []Segment{
			{Text: " And so my fellow Americans,", Start: 0, End: 3000},
			{Text: " ask not", Start: 3000, End: 4400},
		},
	}

	resp, err := DecodeResponse(EncodeReply(reply))
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}

	if resp.Type != reply.Type {
		t.Errorf("Type = %q, want %q", resp.Type, reply.Type)
	}
	if resp.Text == nil || *resp.Text != reply.Text {
		t.Errorf("Text = %v, want %q", resp.Text, reply.Text)
	}
	if !reflect.DeepEqual(resp.Segments, reply.Segments) {
		t.Errorf("Segments = %+v, want %+v", resp.Segments, reply.Segments)
	}
	if resp.Failed() {
		t.Error("Failed() should be false")
	}

	errResp, err := DecodeResponse(EncodeReply(ErrorReply{Error: MsgReadAudio}))
	if err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if !errResp.Failed() || errResp.Error != MsgReadAudio {
		t.Errorf("error reply round trip = %+v", errResp)
	}
	if errResp.Text != nil || errResp.Segments != nil || errResp.Type != "" {
		t.Errorf("error reply should carry nothing else: %+v", errResp)
	}
}

func TestDecodeResponse_Invalid(t *testing.T) {
	if _, err := DecodeResponse("{"); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}
