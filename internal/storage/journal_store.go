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

package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/loqalabs/loqa-whisper-bridge/internal/events"
	"github.com/loqalabs/loqa-whisper-bridge/internal/logging"
)

// ErrNotFound is returned when no journal row matches
var ErrNotFound = errors.New("request not found")

// JournalStore keeps a bounded history of bridge calls
type JournalStore struct {
	db         *Database
	maxEntries int
}

// NewJournalStore creates a journal that keeps at most maxEntries rows;
// maxEntries <= 0 disables pruning
func NewJournalStore(db *Database, maxEntries int) *JournalStore {
	return &JournalStore{db: db, maxEntries: maxEntries}
}

// Record inserts the event and prunes the oldest rows beyond the bound
func (s *JournalStore) Record(event *events.RequestEvent) error {
	if err := s.Insert(event); err != nil {
		return err
	}
	if s.maxEntries > 0 {
		if _, err := s.Prune(s.maxEntries); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores a new request event
func (s *JournalStore) Insert(event *events.RequestEvent) error {
	if err := event.IsValid(); err != nil {
		return fmt.Errorf("invalid request event: %w", err)
	}

	query := `
		INSERT INTO requests (
			uuid, action, model, audio, language, started_at,
			duration_ms, audio_hash, audio_duration, sample_rate,
			segments, text_length, success, error_message
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.DB().Exec(query,
		event.UUID, event.Action, event.Model, event.Audio, event.Language, event.Timestamp,
		event.ProcessingTime, event.AudioHash, event.AudioDuration, event.SampleRate,
		event.Segments, event.TextLength, event.Success, event.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert request event: %w", err)
	}

	logging.LogJournalOperation("insert",
		zap.String("uuid", event.UUID),
		zap.String("action", event.Action),
		zap.Bool("success", event.Success),
	)
	return nil
}

const selectColumns = `
	SELECT uuid, action, model, audio, language, started_at,
	       duration_ms, audio_hash, audio_duration, sample_rate,
	       segments, text_length, success, error_message
	FROM requests`

// GetByUUID retrieves one request event
func (s *JournalStore) GetByUUID(uuid string) (*events.RequestEvent, error) {
	row := s.db.DB().QueryRow(selectColumns+` WHERE uuid = ?`, uuid)
	event, err := scanRequestEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return event, err
}

// Recent returns up to limit events, newest first
func (s *JournalStore) Recent(limit int) ([]*events.RequestEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.DB().Query(selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query request events: %w", err)
	}
	defer rows.Close()

	var list []*events.RequestEvent
	for rows.Next() {
		event, err := scanRequestEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request event: %w", err)
		}
		list = append(list, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating request events: %w", err)
	}

	return list, nil
}

// Count returns the number of journal rows
func (s *JournalStore) Count() (int64, error) {
	var count int64
	if err := s.db.DB().QueryRow(`SELECT COUNT(*) FROM requests`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count request events: %w", err)
	}
	return count, nil
}

// Prune deletes all but the newest keep rows and reports how many were removed
func (s *JournalStore) Prune(keep int) (int64, error) {
	result, err := s.db.DB().Exec(`
		DELETE FROM requests
		WHERE id NOT IN (SELECT id FROM requests ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune request events: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned row count: %w", err)
	}
	if removed > 0 {
		logging.LogJournalOperation("prune", zap.Int64("removed", removed), zap.Int("kept", keep))
	}
	return removed, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequestEvent(row scanner) (*events.RequestEvent, error) {
	var event events.RequestEvent
	err := row.Scan(
		&event.UUID, &event.Action, &event.Model, &event.Audio, &event.Language, &event.Timestamp,
		&event.ProcessingTime, &event.AudioHash, &event.AudioDuration, &event.SampleRate,
		&event.Segments, &event.TextLength, &event.Success, &event.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}
	return &event, nil
}
