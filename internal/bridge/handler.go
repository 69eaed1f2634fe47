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

// Package bridge routes serialized requests to the speech recognition engine
// and serializes the outcome. Every call is self-contained: the model is
// loaded, used and released within the call, so concurrent calls share nothing.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-whisper-bridge/internal/audio"
	"github.com/loqalabs/loqa-whisper-bridge/internal/engine"
	"github.com/loqalabs/loqa-whisper-bridge/internal/events"
	"github.com/loqalabs/loqa-whisper-bridge/internal/security"
)

// Version is reported by getVersion
const Version = "1.0.0"

const maxLoggedBody = 512

// AudioDecoder turns a path (or "-") into PCM
type AudioDecoder interface {
	Decode(path string, stereo bool) (*audio.PCM, error)
}

// EventSink receives one event per finished call. Sinks are called
// synchronously and must be safe for concurrent use.
type EventSink interface {
	Record(event *events.RequestEvent) error
}

// Handler is the request router
type Handler struct {
	engine   engine.Engine
	decoder  AudioDecoder
	logger   *zap.Logger
	defaults engine.Options
	sinks    []EventSink
}

// Option configures a Handler
type Option func(*Handler)

// WithLogger injects the logger; nil keeps the no-op logger
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDecoder replaces the WAV decoder
func WithDecoder(decoder AudioDecoder) Option {
	return func(h *Handler) {
		h.decoder = decoder
	}
}

// WithDefaults sets the inference options requests start from
func WithDefaults(opts engine.Options) Option {
	return func(h *Handler) {
		h.defaults = opts
	}
}

// WithSink adds an event sink
func WithSink(sink EventSink) Option {
	return func(h *Handler) {
		if sink != nil {
			h.sinks = append(h.sinks, sink)
		}
	}
}

// NewHandler creates a router over the given engine
func NewHandler(eng engine.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:   eng,
		decoder:  audio.NewDecoder(),
		logger:   zap.NewNop(),
		defaults: engine.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(zap.String("component", "bridge"))
	return h
}

// Handle decodes body, runs the requested action and returns the serialized reply
func (h *Handler) Handle(ctx context.Context, body string) string {
	return EncodeReply(h.Dispatch(ctx, body))
}

// Dispatch runs one request. It never panics; failures become an ErrorReply.
func (h *Handler) Dispatch(ctx context.Context, body string) (reply Reply) {
	event := events.NewRequestEvent()
	log := h.logger.With(zap.String("request_id", event.UUID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered panic while handling request",
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			reply = ErrorReply{Error: fmt.Sprintf("internal error: %v", r)}
			event.SetError(fmt.Errorf("panic: %v", r))
		}
		event.Finish()
		h.record(log, event)
	}()

	log.Debug("Request received", zap.String("body", security.TruncateForLog(body, maxLoggedBody)))

	req, err := DecodeRequest(body)
	if err != nil {
		log.Warn("Rejected request", zap.Error(err))
		event.SetError(err)
		return ErrorReply{Error: err.Error()}
	}
	event.Action = req.Action()

	switch r := req.(type) {
	case VersionRequest:
		log.Debug("Version requested")
		return VersionReply{Type: ActionGetVersion, Version: Version}
	case TranscribeRequest:
		return h.transcribe(ctx, log, event, r)
	case UnknownRequest:
		msg := UnknownActionMessage(r.Type)
		log.Warn("Unknown action", zap.String("action", security.SanitizeLogInput(r.Type)))
		event.SetError(errors.New(msg))
		return ErrorReply{Error: msg}
	default:
		panic(fmt.Sprintf("unhandled request type %T", req))
	}
}

func (h *Handler) transcribe(ctx context.Context, log *zap.Logger, event *events.RequestEvent, req TranscribeRequest) Reply {
	opts := h.options(req)
	event.SetRequest(ActionTranscribe, req.Model, req.Audio, opts.Language)

	log = log.With(
		zap.String("model", security.SanitizeLogInput(req.Model)),
		zap.String("audio", security.SanitizeLogInput(req.Audio)),
	)

	wctx, err := h.engine.Load(req.Model)
	if err != nil || wctx == nil {
		log.Error("Failed to load model", zap.Error(err))
		event.SetError(fmt.Errorf("%s: %v", MsgModelLoad, err))
		return ErrorReply{Error: MsgModelLoad}
	}
	defer wctx.Close()

	pcm, err := h.decoder.Decode(req.Audio, opts.Diarize)
	if err != nil {
		log.Error("Failed to read audio", zap.Error(err))
		event.SetError(fmt.Errorf("%s: %v", MsgReadAudio, err))
		return ErrorReply{Error: MsgReadAudio}
	}
	event.SetAudioMetadata(pcm.Mono, pcm.SampleRate)

	log.Debug("Running inference",
		zap.Int("samples", len(pcm.Mono)),
		zap.Int("threads", opts.Threads),
		zap.Int("processors", opts.Processors),
		zap.String("language", opts.Language),
	)

	if err := wctx.Full(ctx, opts, pcm.Mono); err != nil {
		log.Error("Inference failed", zap.Error(err))
		event.SetError(fmt.Errorf("%s: %v", MsgProcess, err))
		return ErrorReply{Error: MsgProcess}
	}

	segments := wctx.Segments()
	reply := TranscribeReply{
		Type:     ActionTranscribe,
		Segments: make([]Segment, 0, len(segments)),
	}

	var text strings.Builder
	for _, seg := range segments {
		text.WriteString(seg.Text)
		if !opts.NoTimestamps {
			reply.Segments = append(reply.Segments, Segment{
				Text:  seg.Text,
				Start: seg.StartMillis(),
				End:   seg.EndMillis(),
			})
		}
	}
	reply.Text = text.String()

	event.SetTranscription(reply.Text, len(segments))
	log.Info("Transcription complete",
		zap.Int("segments", len(segments)),
		zap.Float64("audio_seconds", pcm.Duration()),
	)

	return reply
}

// options layers the request-configurable fields over the defaults
func (h *Handler) options(req TranscribeRequest) engine.Options {
	opts := h.defaults
	opts.Language = req.Language
	opts.Translate = req.Translate
	opts.NoTimestamps = req.NoTimestamps
	opts.PrintSpecial = req.SpecialTokens

	if req.Threads != nil {
		opts.Threads = *req.Threads
	}
	if req.MaxContext != nil && *req.MaxContext >= 0 {
		opts.MaxContext = *req.MaxContext
	}

	return opts
}

func (h *Handler) record(log *zap.Logger, event *events.RequestEvent) {
	for _, sink := range h.sinks {
		if err := recordSafely(sink, event); err != nil {
			log.Warn("Event sink failed", zap.Error(err))
		}
	}
}

func recordSafely(sink EventSink, event *events.RequestEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panic: %v", r)
		}
	}()
	return sink.Record(event)
}
