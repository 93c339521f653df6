package store

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	r1, err := db.Migrate()
	if err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if !r1.Changed {
		t.Error("first Migrate() Changed = false, want true")
	}

	r2, err := db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if r2.Changed {
		t.Error("second Migrate() Changed = true, want false (no pending)")
	}
	if r1.Version != r2.Version {
		t.Errorf("version changed %d -> %d across no-op migrate", r1.Version, r2.Version)
	}
}

func TestUpsertAndGetDraft(t *testing.T) {
	db := testDB(t)

	savedAt := time.Now().UnixMilli()
	if err := db.UpsertDraft("conv:c1", "hello there", savedAt); err != nil {
		t.Fatalf("UpsertDraft() error = %v", err)
	}

	d, err := db.GetDraft("conv:c1")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil {
		t.Fatal("GetDraft() = nil, want row")
	}
	if d.Body != "hello there" || d.SavedAt != savedAt {
		t.Errorf("draft = %+v, want body=hello there savedAt=%d", d, savedAt)
	}
}

func TestUpsertDraftLastWriteWins(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertDraft("conv:c1", "first", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertDraft("conv:c1", "second", 2000); err != nil {
		t.Fatal(err)
	}

	d, err := db.GetDraft("conv:c1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Body != "second" || d.SavedAt != 2000 {
		t.Errorf("draft = %+v, want the second write", d)
	}
}

func TestGetDraftMissing(t *testing.T) {
	db := testDB(t)

	d, err := db.GetDraft("conv:nope")
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Errorf("GetDraft(missing) = %+v, want nil", d)
	}
}

func TestDeleteDraft(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertDraft("conv:c1", "bye", 1000); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteDraft("conv:c1"); err != nil {
		t.Fatalf("DeleteDraft() error = %v", err)
	}
	d, _ := db.GetDraft("conv:c1")
	if d != nil {
		t.Error("draft still present after delete")
	}

	// Deleting a missing key is not an error.
	if err := db.DeleteDraft("conv:c1"); err != nil {
		t.Errorf("DeleteDraft(missing) error = %v", err)
	}
}

func TestDeleteAllDrafts(t *testing.T) {
	db := testDB(t)

	_ = db.UpsertDraft("conv:c1", "a", 1000)
	_ = db.UpsertDraft("phone:+15551234567", "b", 2000)

	if err := db.DeleteAllDrafts(); err != nil {
		t.Fatalf("DeleteAllDrafts() error = %v", err)
	}

	for _, key := range []string{"conv:c1", "phone:+15551234567"} {
		if d, _ := db.GetDraft(key); d != nil {
			t.Errorf("draft %q survived DeleteAllDrafts", key)
		}
	}

	// Empty table is fine too.
	if err := db.DeleteAllDrafts(); err != nil {
		t.Errorf("DeleteAllDrafts(empty) error = %v", err)
	}
}

func TestRekeyDraft(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertDraft("phone:+15551234567", "moving text", 4242); err != nil {
		t.Fatal(err)
	}
	if err := db.RekeyDraft("phone:+15551234567", "conv:c9"); err != nil {
		t.Fatalf("RekeyDraft() error = %v", err)
	}

	old, _ := db.GetDraft("phone:+15551234567")
	if old != nil {
		t.Error("old key still present after rekey")
	}
	d, err := db.GetDraft("conv:c9")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil {
		t.Fatal("new key missing after rekey")
	}
	if d.Body != "moving text" || d.SavedAt != 4242 {
		t.Errorf("rekeyed draft = %+v, want body and saved_at preserved", d)
	}
}

func TestRekeyDraftOverwritesExisting(t *testing.T) {
	db := testDB(t)

	_ = db.UpsertDraft("phone:+15551234567", "virtual text", 1000)
	_ = db.UpsertDraft("conv:c9", "stale", 500)

	if err := db.RekeyDraft("phone:+15551234567", "conv:c9"); err != nil {
		t.Fatal(err)
	}

	d, _ := db.GetDraft("conv:c9")
	if d == nil || d.Body != "virtual text" {
		t.Errorf("draft = %+v, want the rekeyed virtual draft to win", d)
	}
}

func TestRekeyDraftMissingSource(t *testing.T) {
	db := testDB(t)

	if err := db.RekeyDraft("phone:+19990000000", "conv:c1"); err != nil {
		t.Errorf("RekeyDraft(missing source) error = %v, want nil (no-op)", err)
	}
}
