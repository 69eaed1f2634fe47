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
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-whisper-bridge/internal/events"
)

func newTestJournal(t *testing.T, maxEntries int) *JournalStore {
	t.Helper()

	db, err := NewDatabase(DatabaseConfig{Path: filepath.Join(t.TempDir(), "nested", "journal.db")})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return NewJournalStore(db, maxEntries)
}

func newEvent(action string) *events.RequestEvent {
	event := events.NewRequestEvent()
	event.SetRequest(action, "ggml-base.en.bin", "jfk.wav", "en")
	event.Finish()
	return event
}

func TestNewDatabase_RequiresPath(t *testing.T) {
	if _, err := NewDatabase(DatabaseConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestDatabase_Lifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := NewDatabase(DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	if db.GetPath() != path {
		t.Errorf("GetPath() = %q, want %q", db.GetPath(), path)
	}
	if err := db.Checkpoint(); err != nil {
		t.Errorf("Checkpoint() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Reopening runs the idempotent schema again
	again, err := NewDatabase(DatabaseConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	_ = again.Close()
}

func TestJournalStore_InsertAndGet(t *testing.T) {
	store := newTestJournal(t, 0)

	event := newEvent("getTextFromWavFile")
	event.SetAudioMetadata(make([]float32, 16000), 16000)
	event.SetTranscription(" hello world", 1)

	if err := store.Insert(event); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := store.GetByUUID(event.UUID)
	if err != nil {
		t.Fatalf("GetByUUID() error = %v", err)
	}

	if got.Action != event.Action || got.Model != event.Model || got.Audio != event.Audio {
		t.Errorf("request fields = %+v", got)
	}
	if got.AudioHash != event.AudioHash || got.AudioDuration != 1.0 || got.SampleRate != 16000 {
		t.Errorf("audio fields = %+v", got)
	}
	if got.Segments != 1 || got.TextLength != len(" hello world") || !got.Success {
		t.Errorf("result fields = %+v", got)
	}
	if got.Timestamp.Sub(event.Timestamp).Abs() > time.Second {
		t.Errorf("Timestamp = %v, want ~%v", got.Timestamp, event.Timestamp)
	}
}

func TestJournalStore_GetByUUID_NotFound(t *testing.T) {
	store := newTestJournal(t, 0)

	if _, err := store.GetByUUID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByUUID() error = %v, want ErrNotFound", err)
	}
}

func TestJournalStore_InsertRejectsInvalid(t *testing.T) {
	store := newTestJournal(t, 0)

	event := newEvent("getVersion")
	event.UUID = ""
	if err := store.Insert(event); err == nil {
		t.Fatal("expected error for invalid event")
	}
}

func TestJournalStore_RecordIsBounded(t *testing.T) {
	store := newTestJournal(t, 5)

	var last *events.RequestEvent
	for i := 0; i < 12; i++ {
		last = newEvent(fmt.Sprintf("action-%d", i))
		if i%3 == 0 {
			last.SetError(errors.New("Failed to read audio file"))
		}
		if err := store.Record(last); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 5 {
		t.Errorf("Count() = %d, want 5", count)
	}

	recent, err := store.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 5 {
		t.Fatalf("len(Recent) = %d, want 5", len(recent))
	}
	if recent[0].UUID != last.UUID {
		t.Errorf("Recent()[0] = %s, want newest %s", recent[0].UUID, last.UUID)
	}
	if recent[4].Action != "action-7" {
		t.Errorf("oldest kept = %s, want action-7", recent[4].Action)
	}
	if !recent[1].Success || recent[2].Success {
		t.Errorf("success flags not preserved: action-10=%v action-9=%v", recent[1].Success, recent[2].Success)
	}
}

func TestJournalStore_Prune(t *testing.T) {
	store := newTestJournal(t, 0)

	for i := 0; i < 4; i++ {
		if err := store.Record(newEvent("getVersion")); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := store.Prune(1)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("Prune() removed %d, want 3", removed)
	}

	removed, err = store.Prune(1)
	if err != nil || removed != 0 {
		t.Errorf("second Prune() = %d, %v; want 0, nil", removed, err)
	}
}

func TestJournalStore_ConcurrentRecord(t *testing.T) {
	store := newTestJournal(t, 100)

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Record(newEvent("getVersion"))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Record() error = %v", err)
		}
	}

	count, err := store.Count()
	if err != nil {
		t.Fatal(err)
	}
	if count != 40 {
		t.Errorf("Count() = %d, want 40", count)
	}
}
