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
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-whisper-bridge/internal/events"
	"github.com/loqalabs/loqa-whisper-bridge/internal/logging"
)

// Publisher is the part of a NATS connection the event publisher needs
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventPublisher announces finished requests on the events subject
type EventPublisher struct {
	pub     Publisher
	subject string
}

// NewEventPublisher creates a publisher for subject
func NewEventPublisher(pub Publisher, subject string) *EventPublisher {
	return &EventPublisher{pub: pub, subject: subject}
}

// Record publishes the event as JSON
func (ep *EventPublisher) Record(event *events.RequestEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal request event: %w", err)
	}

	if err := ep.pub.Publish(ep.subject, data); err != nil {
		return err
	}

	logging.LogNATSEvent(ep.subject, "published",
		zap.String("uuid", event.UUID),
		zap.Bool("success", event.Success),
	)
	return nil
}
