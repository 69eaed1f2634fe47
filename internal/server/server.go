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

package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-whisper-bridge/internal/bridge"
	"github.com/loqalabs/loqa-whisper-bridge/internal/config"
	"github.com/loqalabs/loqa-whisper-bridge/internal/engine"
	"github.com/loqalabs/loqa-whisper-bridge/internal/logging"
	"github.com/loqalabs/loqa-whisper-bridge/internal/messaging"
	"github.com/loqalabs/loqa-whisper-bridge/internal/storage"
)

// Server wires the request router to its optional journal and NATS transport
type Server struct {
	cfg    *config.Config
	engine engine.Engine
	logger *zap.Logger

	database *storage.Database
	journal  *storage.JournalStore
	handler  *bridge.Handler
	nats     *messaging.NATSService
}

// New creates a server over eng. The journal is opened when cfg.Journal.Path is set.
func New(cfg *config.Config, eng engine.Engine) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: logging.Named("server"),
	}

	if cfg.Journal.Path != "" {
		database, err := storage.NewDatabase(storage.DatabaseConfig{Path: cfg.Journal.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to open request journal: %w", err)
		}
		s.database = database
		s.journal = storage.NewJournalStore(database, cfg.Journal.MaxEntries)
	}

	s.handler = s.newHandler()

	s.logger.Debug("Components configured",
		zap.Int("threads", cfg.Engine.Threads),
		zap.Int("processors", cfg.Engine.Processors),
		zap.String("journal", s.JournalPath()),
	)
	return s, nil
}

// newHandler builds a router with the configured defaults and every active sink
func (s *Server) newHandler(extra ...bridge.EventSink) *bridge.Handler {
	defaults := engine.DefaultOptions()
	defaults.Threads = s.cfg.Engine.Threads
	defaults.Processors = s.cfg.Engine.Processors

	opts := []bridge.Option{
		bridge.WithLogger(logging.Named("bridge")),
		bridge.WithDefaults(defaults),
	}
	if s.journal != nil {
		opts = append(opts, bridge.WithSink(s.journal))
	}
	for _, sink := range extra {
		opts = append(opts, bridge.WithSink(sink))
	}
	return bridge.NewHandler(s.engine, opts...)
}

// Handler returns the request router
func (s *Server) Handler() *bridge.Handler {
	return s.handler
}

// Journal returns the request journal, or nil when disabled
func (s *Server) Journal() *storage.JournalStore {
	return s.journal
}

// Serve answers NATS requests until ctx is done. Completion events are
// published on the events subject when one is configured.
func (s *Server) Serve(ctx context.Context) error {
	s.nats = messaging.NewNATSService(s.cfg.NATS, logging.Named("nats"))
	if err := s.nats.Connect(); err != nil {
		return err
	}

	var sinks []bridge.EventSink
	if s.cfg.NATS.EventsSubject != "" {
		sinks = append(sinks, messaging.NewEventPublisher(s.nats, s.cfg.NATS.EventsSubject))
	}
	s.handler = s.newHandler(sinks...)

	s.logger.Info("Whisper bridge serving",
		zap.String("nats_url", s.cfg.NATS.URL),
		zap.String("subject", s.cfg.NATS.Subject),
		zap.String("queue", s.cfg.NATS.Queue),
	)

	return s.nats.Serve(ctx, s.handler)
}

// JournalPath returns the journal database file, or "" when disabled
func (s *Server) JournalPath() string {
	if s.database == nil {
		return ""
	}
	return s.database.GetPath()
}

// Close releases the NATS connection and the journal
func (s *Server) Close() error {
	if s.nats != nil {
		if s.nats.IsConnected() {
			stats := s.nats.GetStats()
			s.logger.Info("NATS connection statistics",
				zap.Uint64("in_msgs", stats.InMsgs),
				zap.Uint64("out_msgs", stats.OutMsgs),
				zap.Uint64("in_bytes", stats.InBytes),
				zap.Uint64("out_bytes", stats.OutBytes),
				zap.Uint64("reconnects", stats.Reconnects),
			)
		}
		s.nats.Close()
		s.nats = nil
	}
	if s.database != nil {
		if err := s.database.Checkpoint(); err != nil {
			s.logger.Warn("Journal checkpoint failed", zap.Error(err))
		}
		err := s.database.Close()
		s.database = nil
		return err
	}
	return nil
}
