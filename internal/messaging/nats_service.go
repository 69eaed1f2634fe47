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

package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/loqalabs/loqa-whisper-bridge/internal/config"
	"github.com/loqalabs/loqa-whisper-bridge/internal/logging"
)

// ErrNotConnected is returned by operations that need a live connection
var ErrNotConnected = errors.New("NATS connection not established")

// RequestHandler turns a serialized request into a serialized reply
type RequestHandler interface {
	Handle(ctx context.Context, body string) string
}

// NATSService exposes the request router over NATS request/reply
type NATSService struct {
	cfg    config.NATSConfig
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSService creates a new NATS service instance
func NewNATSService(cfg config.NATSConfig, logger *zap.Logger) *NATSService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSService{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "nats")),
	}
}

// Connect establishes connection to NATS server
func (ns *NATSService) Connect() error {
	ns.logger.Info("Connecting to NATS", zap.String("url", ns.cfg.URL))

	opts := []nats.Option{
		nats.Name("whisper-bridge"),
		nats.ReconnectWait(ns.cfg.ReconnectWait),
		nats.MaxReconnects(ns.cfg.MaxReconnect),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			ns.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			ns.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			ns.logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(ns.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	ns.conn = conn
	ns.logger.Info("Connected to NATS server", zap.String("url", conn.ConnectedUrl()))
	return nil
}

// Serve answers requests on the configured subject until ctx is done.
// Messages already received when ctx ends are drained and still answered.
func (ns *NATSService) Serve(ctx context.Context, handler RequestHandler) error {
	if ns.conn == nil {
		return ErrNotConnected
	}

	// In-flight requests outlive the serve context so drained messages get a reply
	base := context.WithoutCancel(ctx)

	sub, err := ns.conn.QueueSubscribe(ns.cfg.Subject, ns.cfg.Queue, func(msg *nats.Msg) {
		reply := ns.respond(base, handler, msg.Data)
		if msg.Reply == "" {
			ns.logger.Warn("Request without reply subject dropped", zap.String("subject", msg.Subject))
			return
		}
		if err := msg.Respond(reply); err != nil {
			ns.logger.Error("Failed to send reply", zap.String("reply", msg.Reply), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", ns.cfg.Subject, err)
	}

	logging.LogNATSEvent(ns.cfg.Subject, "serving", zap.String("queue", ns.cfg.Queue))

	<-ctx.Done()

	if err := sub.Drain(); err != nil {
		return fmt.Errorf("failed to drain subscription: %w", err)
	}
	// Interest is gone from the server once the flush round trip completes
	if err := ns.conn.Flush(); err != nil {
		ns.logger.Warn("Failed to flush after drain", zap.Error(err))
	}
	logging.LogNATSEvent(ns.cfg.Subject, "drained")
	return nil
}

// respond runs one request under the configured timeout
func (ns *NATSService) respond(ctx context.Context, handler RequestHandler, data []byte) []byte {
	if ns.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ns.cfg.RequestTimeout)
		defer cancel()
	}
	return []byte(handler.Handle(ctx, string(data)))
}

// Publish sends data on subject
func (ns *NATSService) Publish(subject string, data []byte) error {
	if ns.conn == nil {
		return ErrNotConnected
	}
	if err := ns.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// Close drains and closes the NATS connection
func (ns *NATSService) Close() {
	if ns.conn != nil {
		if err := ns.conn.Drain(); err != nil {
			ns.conn.Close()
		}
		ns.conn = nil
	}
}

// IsConnected returns true if connected to NATS
func (ns *NATSService) IsConnected() bool {
	return ns.conn != nil && ns.conn.IsConnected()
}

// GetStats returns connection statistics
func (ns *NATSService) GetStats() nats.Statistics {
	if ns.conn != nil {
		return ns.conn.Stats()
	}
	return nats.Statistics{}
}
