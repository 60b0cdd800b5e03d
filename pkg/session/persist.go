package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jwebster45206/questkeeper/pkg/save"
)

// Snapshot captures the whole player state as one record.
func (s *Session) Snapshot() *save.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) snapshot() *save.Record {
	records, handedIn := s.quests.Snapshot()
	return &save.Record{
		Version:     save.CurrentVersion,
		PlayerID:    s.id,
		Position:    s.position,
		MapBoundary: s.mapBoundary,
		Inventory:   s.inv.Snapshot(),
		Hotbar:      s.hotbar.Snapshot(),
		Chests:      s.chests.States(),
		Quests:      records,
		HandedIn:    handedIn,
		SavedAt:     time.Now().UTC(),
	}
}

// Save writes the current state in a single storage write. Saves of one
// session are serialized so the last write always holds the newest state.
func (s *Session) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	rec := s.Snapshot()
	if err := s.store.SaveRecord(ctx, s.id, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	s.logger.Debug("Session saved", "quests", len(rec.Quests), "items", len(rec.Inventory))
	return nil
}

// Load replaces the session state with the stored record. With no record
// the current state is saved as the initial record and the inventories
// are cleared. A record that fails to load leaves the session untouched.
func (s *Session) Load(ctx context.Context) error {
	rec, err := s.store.LoadRecord(ctx, s.id)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if rec == nil {
		if err := s.Save(ctx); err != nil {
			return err
		}
		s.mu.Lock()
		s.inv.Clear()
		s.hotbar.Clear()
		s.mu.Unlock()
		s.logger.Info("No save found, created initial record")
		return nil
	}

	s.dialogue.Reset()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restore(rec)
	return nil
}

// restore applies rec in dependency order: inventories first, then the
// quest log recomputed from the new counts, then chest flags.
func (s *Session) restore(rec *save.Record) {
	if skipped := s.inv.Restore(rec.Inventory); len(skipped) > 0 {
		s.logger.Warn("Skipped invalid inventory entries", "count", len(skipped))
	}
	if skipped := s.hotbar.Restore(rec.Hotbar); len(skipped) > 0 {
		s.logger.Warn("Skipped invalid hotbar entries", "count", len(skipped))
	}
	if skipped := s.quests.Restore(rec.Quests, rec.HandedIn, s.registry, s.inv.Counts()); len(skipped) > 0 {
		s.logger.Warn("Skipped unknown quests", "quest_ids", skipped)
	}
	restoreChests := s.chests.Restore
	if s.mergeChests {
		restoreChests = s.chests.Merge
	}
	if skipped := restoreChests(rec.Chests); len(skipped) > 0 {
		s.logger.Warn("Skipped unknown chests", "chest_ids", skipped)
	}
	s.position = rec.Position
	if rec.MapBoundary != "" {
		s.mapBoundary = rec.MapBoundary
	}
	s.logger.Info("Session loaded", "saved_at", rec.SavedAt)
}
