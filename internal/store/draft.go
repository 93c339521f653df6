package store

import (
	"database/sql"
	"time"
)

// UpsertDraft inserts or replaces a draft (last-write-wins on key).
func (db *DB) UpsertDraft(key, body string, savedAt int64) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO drafts (key, body, saved_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			saved_at = excluded.saved_at,
			updated_at = excluded.updated_at`,
		key, body, savedAt, now)
	return err
}

// GetDraft returns a draft by key, or nil if none exists.
func (db *DB) GetDraft(key string) (*DraftRow, error) {
	var d DraftRow
	err := db.QueryRow(`SELECT key, body, saved_at FROM drafts WHERE key = ?`, key).
		Scan(&d.Key, &d.Body, &d.SavedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDraft removes a draft by key. Missing keys are not an error.
func (db *DB) DeleteDraft(key string) error {
	_, err := db.Exec(`DELETE FROM drafts WHERE key = ?`, key)
	return err
}

// DeleteAllDrafts removes every draft regardless of age.
func (db *DB) DeleteAllDrafts() error {
	_, err := db.Exec(`DELETE FROM drafts`)
	return err
}

// RekeyDraft moves a draft from oldKey to newKey, preserving body and
// saved_at. If a draft already exists under newKey it is overwritten.
// A missing oldKey is a no-op.
func (db *DB) RekeyDraft(oldKey, newKey string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.Exec(`DELETE FROM drafts WHERE key = ?`, newKey); err != nil {
		return err
	}
	if _, err := tx.Exec(`UPDATE drafts SET key = ?, updated_at = ? WHERE key = ?`, newKey, now, oldKey); err != nil {
		return err
	}
	return tx.Commit()
}
