// Package draft persists per-conversation message drafts with a 24-hour
// expiry. Drafts are a convenience: storage failures are logged and
// swallowed, never surfaced to callers or allowed to block sending.
package draft

import (
	"strings"
	"time"

	"github.com/leadline/leadline/internal/store"
	"go.uber.org/zap"
)

// TTL is how long a saved draft stays readable. Expiry is lazy: the entry
// is deleted on the first read past the deadline, not by a background sweep.
const TTL = 24 * time.Hour

// ConvKey returns the draft key for a server-backed conversation.
func ConvKey(conversationID string) string { return "conv:" + conversationID }

// PhoneKey returns the draft key for a virtual conversation.
func PhoneKey(phone string) string { return "phone:" + phone }

// Store reads and writes drafts in the agent database.
type Store struct {
	db     *store.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a draft store backed by db.
func NewStore(db *store.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger, now: time.Now}
}

// Save stores text under key, stamped now. Empty or whitespace-only text
// deletes the draft instead of storing an empty entry.
func (s *Store) Save(key, text string) {
	if strings.TrimSpace(text) == "" {
		s.Clear(key)
		return
	}
	if err := s.db.UpsertDraft(key, text, s.now().UnixMilli()); err != nil {
		s.logger.Warn("draft save failed", zap.String("key", key), zap.Error(err))
	}
}

// Load returns the draft text for key, or ("", false) when absent.
// An entry older than TTL is deleted and reported absent.
func (s *Store) Load(key string) (string, bool) {
	row, err := s.db.GetDraft(key)
	if err != nil {
		s.logger.Warn("draft load failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	if row == nil {
		return "", false
	}
	age := s.now().Sub(time.UnixMilli(row.SavedAt))
	if age > TTL {
		if err := s.db.DeleteDraft(key); err != nil {
			s.logger.Warn("expired draft delete failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return row.Body, true
}

// Clear removes the draft for key.
func (s *Store) Clear(key string) {
	if err := s.db.DeleteDraft(key); err != nil {
		s.logger.Warn("draft clear failed", zap.String("key", key), zap.Error(err))
	}
}

// ClearAll removes every draft regardless of age. Used on logout/reset.
func (s *Store) ClearAll() {
	if err := s.db.DeleteAllDrafts(); err != nil {
		s.logger.Warn("draft clear-all failed", zap.Error(err))
	}
}

// Rekey moves a draft from oldKey to newKey, preserving text and save time.
// Used when a virtual conversation adopts its server id.
func (s *Store) Rekey(oldKey, newKey string) {
	if err := s.db.RekeyDraft(oldKey, newKey); err != nil {
		s.logger.Warn("draft rekey failed",
			zap.String("old", oldKey), zap.String("new", newKey), zap.Error(err))
	}
}
